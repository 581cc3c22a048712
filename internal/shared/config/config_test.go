package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "0.05", cfg.PlatformFeeRate.String())
	assert.Equal(t, StakeOnCreate, cfg.StakeCommit)
	assert.Equal(t, 20, cfg.RatingDelta)
	assert.Equal(t, 1000, cfg.InitialRating)
	assert.Equal(t, 5*time.Second, cfg.OpTimeout)
	assert.Equal(t, "wager_events", cfg.TopicWagerEvents)
	assert.Equal(t, "game_results_dlq", cfg.TopicGameResultsDLQ)
	assert.Empty(t, cfg.Origins())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("STAKE_COMMIT", StakeOnAccept)
	t.Setenv("PLATFORM_FEE_RATE", "0.10")
	t.Setenv("RATING_STRATEGY", "elo")
	t.Setenv("ELO_K", "24")
	t.Setenv("OP_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, StakeOnAccept, cfg.StakeCommit)
	assert.Equal(t, "0.1", cfg.PlatformFeeRate.String())
	assert.Equal(t, 24, cfg.EloK)
	assert.Equal(t, 750*time.Millisecond, cfg.OpTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Origins())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"STORE_BACKEND":     "sqlite",
		"STAKE_COMMIT":      "never",
		"PLATFORM_FEE_RATE": "five",
		"RATING_DELTA":      "x",
		"OP_TIMEOUT":        "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
