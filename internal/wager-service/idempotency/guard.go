package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
)

const pending = "pending"

// RedisGuard marca referências externas de depósito com SET NX
// Valor "pending" enquanto o depósito roda; depois, o ID da transação criada
type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisGuard(c redis.Cmdable, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: c, ttl: ttl}
}

// key gera a chave Redis de uma referência de depósito
func key(ref string) string { return "deposit:ref:" + ref }

// Begin reserva a referência; devolve o ID da transação se ela já foi concluída
func (g *RedisGuard) Begin(ctx context.Context, ref string) (string, error) {
	ok, err := g.client.SetNX(ctx, key(ref), pending, g.ttl).Result()
	if err != nil {
		return "", domain.Unavailable(fmt.Errorf("redis setnx: %w", err))
	}
	if ok {
		return "", nil
	}

	v, err := g.client.Get(ctx, key(ref)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expirou entre o SETNX e o GET; trata como concorrente
		return "", fmt.Errorf("deposit ref %s: %w", ref, domain.ErrDuplicateRequest)
	case err != nil:
		return "", domain.Unavailable(fmt.Errorf("redis get: %w", err))
	case v == pending:
		return "", fmt.Errorf("deposit ref %s: %w", ref, domain.ErrDuplicateRequest)
	default:
		return v, nil
	}
}

func (g *RedisGuard) Complete(ctx context.Context, ref, txID string) error {
	if err := g.client.Set(ctx, key(ref), txID, g.ttl).Err(); err != nil {
		return domain.Unavailable(fmt.Errorf("redis set: %w", err))
	}
	return nil
}

func (g *RedisGuard) Abort(ctx context.Context, ref string) error {
	if err := g.client.Del(ctx, key(ref)).Err(); err != nil {
		return domain.Unavailable(fmt.Errorf("redis del: %w", err))
	}
	return nil
}
