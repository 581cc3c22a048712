package repo

import (
	"context"
	"sync"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
)

// keyLocks é um mutex por chave (conta ou wager) com espera limitada pelo contexto
// Um canal por entidade, nunca removido: o mapa cresce junto com o próprio store,
// que também guarda toda conta e wager em memória
type keyLocks struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func newKeyLocks() *keyLocks { return &keyLocks{sems: make(map[string]chan struct{})} }

func (k *keyLocks) sem(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		k.sems[key] = s
	}
	return s
}

// lock bloqueia até obter a chave ou o contexto expirar
func (k *keyLocks) lock(ctx context.Context, key string) error {
	select {
	case k.sem(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return domain.Unavailable(ctx.Err())
	}
}

func (k *keyLocks) unlock(key string) { <-k.sem(key) }
