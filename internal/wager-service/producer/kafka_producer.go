package producer

import (
	"context"

	"github.com/radieske/pool-wager-escrow/internal/shared/kafka"
	"github.com/radieske/pool-wager-escrow/pkg/contracts/events"
)

// KafkaPublisher publica eventos de wager com a wager id como chave,
// mantendo a ordem dos eventos de uma mesma wager dentro da partição
type KafkaPublisher struct {
	Writer kafka.MessageWriter
}

func NewKafkaPublisher(w kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e events.WagerEvent) error {
	return kafka.WriteJSON(ctx, p.Writer, e.WagerID, e)
}
