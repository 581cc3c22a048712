package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/escrow"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// Result é o que uma liquidação produziu
type Result struct {
	Wager   domain.Wager
	Escrow  domain.EscrowRecord
	Prize   domain.Transaction
	Revenue domain.RevenueEntry
	Winner  domain.Account
	Loser   domain.Account
}

// Engine conclui uma wager ativa: paga o vencedor pelo escrow, registra a
// receita da plataforma e atualiza estatísticas e rating dos jogadores
type Engine struct {
	escrow *escrow.Manager
	rating RatingStrategy
	rate   decimal.Decimal
	now    func() time.Time
	newID  func() string
}

func NewEngine(em *escrow.Manager, rating RatingStrategy, rate decimal.Decimal) *Engine {
	if rating == nil {
		rating = FixedDelta{Delta: 20}
	}
	return &Engine{
		escrow: em,
		rating: rating,
		rate:   rate,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Rate é a taxa aplicada às novas wagers
func (e *Engine) Rate() decimal.Decimal { return e.rate }

// Fees calcula taxa e prêmio para uma stake com a taxa configurada
func (e *Engine) Fees(stake money.Amount) (Fees, error) { return ComputeFees(stake, e.rate) }

// RatingName identifica a estratégia em uso (logs)
func (e *Engine) RatingName() string { return e.rating.Name() }

// Settle exige a wager e as contas dos dois jogadores travadas em tx
func (e *Engine) Settle(ctx context.Context, tx repo.Tx, w domain.Wager, winnerID string, result json.RawMessage) (Result, error) {
	if w.Status != domain.WagerActive {
		return Result{}, fmt.Errorf("wager %s is %s: %w", w.ID, w.Status, domain.ErrWagerNotActive)
	}
	if winnerID == "" || !w.IsParticipant(winnerID) {
		return Result{}, fmt.Errorf("winner %q for wager %s: %w", winnerID, w.ID, domain.ErrInvalidWinner)
	}
	loserID := w.Loser(winnerID)

	esc, prize, err := e.escrow.Release(ctx, tx, w.ID, winnerID)
	if err != nil {
		return Result{}, err
	}

	now := e.now()
	rev := domain.RevenueEntry{
		ID:          e.newID(),
		WagerID:     w.ID,
		Amount:      esc.PlatformFee,
		FeeRate:     e.rate.String(),
		CollectedAt: now,
	}
	if err := tx.AppendRevenue(ctx, rev); err != nil {
		return Result{}, err
	}

	winner, err := tx.Account(ctx, winnerID)
	if err != nil {
		return Result{}, err
	}
	loser, err := tx.Account(ctx, loserID)
	if err != nil {
		return Result{}, err
	}
	winner.Rating, loser.Rating = e.rating.Adjust(winner.Rating, loser.Rating)
	winner.GamesPlayed++
	winner.GamesWon++
	winner.TotalEarnings = winner.TotalEarnings.Add(prize.Amount)
	winner.UpdatedAt = now
	loser.GamesPlayed++
	loser.UpdatedAt = now
	for _, a := range []domain.Account{winner, loser} {
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return Result{}, err
		}
	}

	w.Status = domain.WagerCompleted
	w.WinnerID = winnerID
	w.Result = result
	w.CompletedAt = &now
	if err := tx.PutWager(ctx, w); err != nil {
		return Result{}, err
	}

	return Result{Wager: w, Escrow: esc, Prize: prize, Revenue: rev, Winner: winner, Loser: loser}, nil
}
