package settlement

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/escrow"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/ledger"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

var clock = time.Date(2026, 6, 1, 18, 30, 0, 0, time.UTC)

func setupActive(t *testing.T) (*repo.Memory, *Engine, domain.Wager) {
	t.Helper()
	ctx := context.Background()
	store := repo.NewMemory()
	l := ledger.New().WithClock(func() time.Time { return clock })
	em := escrow.NewManager(l).WithClock(func() time.Time { return clock })
	eng := NewEngine(em, FixedDelta{Delta: 20}, DefaultFeeRate).WithClock(func() time.Time { return clock })

	fees, err := eng.Fees(money.MustParse("25.00"))
	require.NoError(t, err)
	w := domain.Wager{
		ID: "w1", CreatorID: "alice", OpponentID: "bob", Stake: money.MustParse("25.00"),
		PlatformFee: fees.Fee, TotalPrize: fees.TotalPrize, Status: domain.WagerActive, StakeCommitted: true, CreatedAt: clock,
	}
	require.NoError(t, store.Update(ctx, func(tx repo.Tx) error {
		for _, id := range []string{"alice", "bob"} {
			if err := tx.CreateAccount(ctx, domain.Account{ID: id, Rating: domain.DefaultRating, Active: true}); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, store.Update(ctx, func(tx repo.Tx) error {
		if err := tx.PutWager(ctx, w); err != nil {
			return err
		}
		_, err := em.Hold(ctx, tx, w)
		return err
	}))
	return store, eng, w
}

func settle(store *repo.Memory, eng *Engine, winnerID string) (Result, error) {
	ctx := context.Background()
	var res Result
	err := store.Update(ctx, func(tx repo.Tx) error {
		w, err := tx.LockWager(ctx, "w1")
		if err != nil {
			return err
		}
		if err := tx.LockAccounts(ctx, w.CreatorID, w.OpponentID); err != nil {
			return err
		}
		res, err = eng.Settle(ctx, tx, w, winnerID, json.RawMessage(`{"score":"8-3"}`))
		return err
	})
	return res, err
}

func TestSettle(t *testing.T) {
	store, eng, _ := setupActive(t)
	ctx := context.Background()

	res, err := settle(store, eng, "alice")
	require.NoError(t, err)
	assert.Equal(t, "47.50", res.Prize.Amount.String())
	assert.Equal(t, "2.50", res.Revenue.Amount.String())
	assert.Equal(t, "0.05", res.Revenue.FeeRate)

	w, err := store.GetWager(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.WagerCompleted, w.Status)
	assert.Equal(t, "alice", w.WinnerID)
	require.NotNil(t, w.CompletedAt)
	assert.JSONEq(t, `{"score":"8-3"}`, string(w.Result))

	alice, _ := store.GetAccount(ctx, "alice")
	bob, _ := store.GetAccount(ctx, "bob")
	assert.Equal(t, "47.50", alice.Balance.String())
	assert.Equal(t, "47.50", alice.TotalEarnings.String())
	assert.Equal(t, 1, alice.GamesWon)
	assert.Equal(t, 1, alice.GamesPlayed)
	assert.Equal(t, 1020, alice.Rating)
	assert.Equal(t, 0, bob.GamesWon)
	assert.Equal(t, 1, bob.GamesPlayed)
	assert.Equal(t, 980, bob.Rating)

	e, _ := store.GetEscrow(ctx, "w1")
	assert.Equal(t, domain.EscrowReleased, e.Status)

	rt, err := store.RevenueTotals(ctx, clock.Truncate(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2.50", rt.Total.String())
	assert.Equal(t, "2.50", rt.Since.String())
}

func TestSettle_SecondAttemptRejectedWithoutEffects(t *testing.T) {
	store, eng, _ := setupActive(t)
	ctx := context.Background()

	_, err := settle(store, eng, "bob")
	require.NoError(t, err)
	_, err = settle(store, eng, "bob")
	assert.ErrorIs(t, err, domain.ErrWagerNotActive)

	bob, _ := store.GetAccount(ctx, "bob")
	assert.Equal(t, "47.50", bob.Balance.String())
	assert.Equal(t, 1, bob.GamesPlayed)
}

func TestSettle_InvalidWinnerRollsBack(t *testing.T) {
	store, eng, _ := setupActive(t)
	ctx := context.Background()

	_, err := settle(store, eng, "carol")
	assert.ErrorIs(t, err, domain.ErrInvalidWinner)

	w, _ := store.GetWager(ctx, "w1")
	assert.Equal(t, domain.WagerActive, w.Status)
	lt, _ := store.LedgerTotals(ctx)
	assert.True(t, lt.Revenue.IsZero())
	assert.Equal(t, "50.00", lt.EscrowHeld.String())
}
