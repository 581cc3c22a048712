package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/query"
)

const revenueKey = "wager:revenue:report"

// RevenueCache guarda o relatório de receita no Redis com TTL curto (cache-aside)
// Falhas do Redis nunca derrubam a leitura: caem direto no store
type RevenueCache struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

func NewRevenueCache(c redis.Cmdable, ttl time.Duration, log *zap.Logger) *RevenueCache {
	return &RevenueCache{client: c, ttl: ttl, log: log}
}

// Fetch devolve o relatório do cache ou carrega com load e grava
func (c *RevenueCache) Fetch(ctx context.Context, load func(ctx context.Context) (query.RevenueReport, error)) (query.RevenueReport, error) {
	b, err := c.client.Get(ctx, revenueKey).Bytes()
	switch {
	case err == nil:
		var r query.RevenueReport
		if jerr := json.Unmarshal(b, &r); jerr == nil {
			return r, nil
		}
		c.log.Warn("revenue cache: bad payload, reloading")
	case !errors.Is(err, redis.Nil):
		c.log.Warn("revenue cache get", zap.Error(err))
	}

	r, err := load(ctx)
	if err != nil {
		return query.RevenueReport{}, err
	}
	if b, err := json.Marshal(r); err == nil {
		if err := c.client.Set(ctx, revenueKey, b, c.ttl).Err(); err != nil {
			c.log.Warn("revenue cache set", zap.Error(err))
		}
	}
	return r, nil
}

// Invalidate remove o relatório (chamado após liquidar uma wager)
func (c *RevenueCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, revenueKey).Err(); err != nil {
		c.log.Warn("revenue cache del", zap.Error(err))
	}
}
