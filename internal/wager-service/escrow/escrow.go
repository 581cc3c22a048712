package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/ledger"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// Manager retém os valores de uma wager ativa e os resolve exatamente uma vez:
// release (vencedor recebe o prêmio, a taxa fica com a plataforma) ou refund
//
// Todas as operações rodam dentro da unidade de trabalho do chamador, com a
// wager e as contas dos jogadores já travadas.
type Manager struct {
	ledger *ledger.Ledger
	now    func() time.Time
	newID  func() string
}

func NewManager(l *ledger.Ledger) *Manager {
	return &Manager{
		ledger: l,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Hold cria o escrow da wager com as duas stakes já debitadas dos jogadores
func (m *Manager) Hold(ctx context.Context, tx repo.Tx, w domain.Wager) (domain.EscrowRecord, error) {
	if w.OpponentID == "" {
		return domain.EscrowRecord{}, fmt.Errorf("hold wager %s without opponent: %w", w.ID, domain.ErrWagerNotOpen)
	}
	_, err := tx.Escrow(ctx, w.ID)
	switch {
	case err == nil:
		return domain.EscrowRecord{}, fmt.Errorf("wager %s: %w", w.ID, domain.ErrEscrowExists)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.EscrowRecord{}, err
	}

	e := domain.EscrowRecord{
		ID:            m.newID(),
		WagerID:       w.ID,
		Player1ID:     w.CreatorID,
		Player2ID:     w.OpponentID,
		Player1Amount: w.Stake,
		Player2Amount: w.Stake,
		PlatformFee:   w.PlatformFee,
		TotalHeld:     w.Stake.MulInt(2),
		Status:        domain.EscrowHolding,
		CreatedAt:     m.now(),
	}
	if err := tx.PutEscrow(ctx, e); err != nil {
		return domain.EscrowRecord{}, err
	}
	return e, nil
}

// Release paga total_held - taxa ao vencedor
func (m *Manager) Release(ctx context.Context, tx repo.Tx, wagerID, winnerID string) (domain.EscrowRecord, domain.Transaction, error) {
	e, err := m.holding(ctx, tx, wagerID)
	if err != nil {
		return domain.EscrowRecord{}, domain.Transaction{}, err
	}
	if winnerID != e.Player1ID && winnerID != e.Player2ID {
		return domain.EscrowRecord{}, domain.Transaction{}, fmt.Errorf("winner %s not in escrow %s: %w", winnerID, e.ID, domain.ErrInvalidWinner)
	}

	prize := e.TotalHeld.Sub(e.PlatformFee)
	credit, err := m.ledger.Credit(ctx, tx, winnerID, prize, ledger.Entry{
		Kind:        domain.KindPrizeCredit,
		WagerID:     wagerID,
		Description: "prize for wager " + wagerID,
	})
	if err != nil {
		return domain.EscrowRecord{}, domain.Transaction{}, err
	}

	if err := m.resolve(ctx, tx, &e, domain.EscrowReleased); err != nil {
		return domain.EscrowRecord{}, domain.Transaction{}, err
	}
	return e, credit, nil
}

// Refund devolve a cada jogador exatamente o que foi retido dele
func (m *Manager) Refund(ctx context.Context, tx repo.Tx, wagerID string) (domain.EscrowRecord, []domain.Transaction, error) {
	e, err := m.holding(ctx, tx, wagerID)
	if err != nil {
		return domain.EscrowRecord{}, nil, err
	}

	var out []domain.Transaction
	for _, p := range []struct {
		accountID string
		amount    money.Amount
	}{{e.Player1ID, e.Player1Amount}, {e.Player2ID, e.Player2Amount}} {
		if !p.amount.IsPositive() {
			continue
		}
		t, err := m.ledger.Credit(ctx, tx, p.accountID, p.amount, ledger.Entry{
			Kind:        domain.KindStakeRefund,
			WagerID:     wagerID,
			Description: "refund for wager " + wagerID,
		})
		if err != nil {
			return domain.EscrowRecord{}, nil, err
		}
		out = append(out, t)
	}

	if err := m.resolve(ctx, tx, &e, domain.EscrowRefunded); err != nil {
		return domain.EscrowRecord{}, nil, err
	}
	return e, out, nil
}

func (m *Manager) holding(ctx context.Context, tx repo.Tx, wagerID string) (domain.EscrowRecord, error) {
	e, err := tx.Escrow(ctx, wagerID)
	if err != nil {
		return domain.EscrowRecord{}, err
	}
	if e.Status != domain.EscrowHolding {
		return domain.EscrowRecord{}, fmt.Errorf("escrow %s is %s: %w", e.ID, e.Status, domain.ErrEscrowAlreadyFinal)
	}
	return e, nil
}

func (m *Manager) resolve(ctx context.Context, tx repo.Tx, e *domain.EscrowRecord, status domain.EscrowStatus) error {
	now := m.now()
	e.Status = status
	e.ResolvedAt = &now
	return tx.PutEscrow(ctx, *e)
}
