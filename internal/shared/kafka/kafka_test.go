package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestWriteJSON(t *testing.T) {
	w := &captureWriter{}
	err := WriteJSON(context.Background(), w, "w1", map[string]string{"type": "WAGER_CREATED"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "w1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"type":"WAGER_CREATED"}`, string(w.msgs[0].Value))
	assert.False(t, w.msgs[0].Time.IsZero())
}

func TestWriteJSON_MarshalError(t *testing.T) {
	w := &captureWriter{}
	err := WriteJSON(context.Background(), w, "k", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"k1:9092", "k2:9092"}, "wager_events")
	assert.Equal(t, "wager_events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
