package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, m *Memory, id, balance string) {
	t.Helper()
	require.NoError(t, m.Update(context.Background(), func(tx Tx) error {
		return tx.CreateAccount(context.Background(), domain.Account{
			ID: id, Balance: money.MustParse(balance), Rating: domain.DefaultRating, Active: true, CreatedAt: t0,
		})
	}))
}

func TestMemory_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "10.00")
	boom := errors.New("boom")

	err := m.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.LockAccounts(ctx, "a"))
		a, err := tx.Account(ctx, "a")
		require.NoError(t, err)
		a.Balance = money.MustParse("1.00")
		require.NoError(t, tx.UpdateAccount(ctx, a))
		require.NoError(t, tx.AppendTransaction(ctx, domain.Transaction{ID: "t1", AccountID: "a", Amount: money.MustParse("-9.00")}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := m.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "10.00", a.Balance.String())
	_, err = m.GetTransaction(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_NegativeBalanceRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "5.00")

	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.LockAccounts(ctx, "a"); err != nil {
			return err
		}
		a, _ := tx.Account(ctx, "a")
		a.Balance = a.Balance.Sub(money.MustParse("5.01"))
		return tx.UpdateAccount(ctx, a)
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestMemory_LockOrderEnforced(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "0")
	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		return tx.PutWager(ctx, domain.Wager{ID: "w1", CreatorID: "a", Status: domain.WagerOpen, CreatedAt: t0})
	}))

	err := m.Update(ctx, func(tx Tx) error {
		if err := tx.LockAccounts(ctx, "a"); err != nil {
			return err
		}
		_, err := tx.LockWager(ctx, "w1")
		return err
	})
	assert.ErrorIs(t, err, errLockOrder)

	err = m.Update(ctx, func(tx Tx) error {
		_, err := tx.Account(ctx, "a")
		return err
	})
	assert.ErrorIs(t, err, errLockOrder)
}

func TestMemory_LockWaitBoundedByContext(t *testing.T) {
	m := NewMemory()
	mustCreate(t, m, "a", "0")

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = m.Update(context.Background(), func(tx Tx) error {
			if err := tx.LockAccounts(context.Background(), "a"); err != nil {
				return err
			}
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Update(ctx, func(tx Tx) error { return tx.LockAccounts(ctx, "a") })
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestMemory_LockAccountsUnknown(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "0")

	err := m.Update(ctx, func(tx Tx) error { return tx.LockAccounts(ctx, "a", "ghost") })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_ListOpenWagers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "0")
	mustCreate(t, m, "b", "0")

	stakes := []string{"5.00", "10.00", "20.00", "40.00"}
	for i, s := range stakes {
		creator := "a"
		if i%2 == 1 {
			creator = "b"
		}
		w := domain.Wager{
			ID: fmt.Sprintf("w%d", i), CreatorID: creator, Stake: money.MustParse(s),
			Status: domain.WagerOpen, CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, m.Update(ctx, func(tx Tx) error { return tx.PutWager(ctx, w) }))
	}
	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		return tx.PutWager(ctx, domain.Wager{ID: "done", CreatorID: "a", Status: domain.WagerCompleted, CreatedAt: t0})
	}))

	all, err := m.ListOpenWagers(ctx, OpenWagerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "w3", all[0].ID)
	assert.Equal(t, "w0", all[3].ID)

	lo, hi := money.MustParse("10.00"), money.MustParse("20.00")
	got, err := m.ListOpenWagers(ctx, OpenWagerFilter{MinStake: &lo, MaxStake: &hi})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "w2", got[0].ID)
	assert.Equal(t, "w1", got[1].ID)

	got, err = m.ListOpenWagers(ctx, OpenWagerFilter{ExcludeAccountID: "a", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "w3", got[0].ID)
}

func TestMemory_ListTransactionsPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "0")

	for i := 0; i < 5; i++ {
		tr := domain.Transaction{
			ID: fmt.Sprintf("t%d", i), AccountID: "a", Kind: domain.KindDeposit,
			Amount: money.MustParse("1.00"), Status: domain.TxCompleted, CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, m.Update(ctx, func(tx Tx) error {
			if err := tx.LockAccounts(ctx, "a"); err != nil {
				return err
			}
			return tx.AppendTransaction(ctx, tr)
		}))
	}

	page, total, err := m.ListTransactions(ctx, "a", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "t4", page[0].ID)
	assert.Equal(t, "t3", page[1].ID)

	page, _, err = m.ListTransactions(ctx, "a", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "t0", page[0].ID)

	page, _, err = m.ListTransactions(ctx, "a", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, _, err = m.ListTransactions(ctx, "ghost", 2, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_Totals(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mustCreate(t, m, "a", "0")
	now := t0

	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		if _, err := tx.LockWager(ctx, "w1"); !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("expected not found, got %v", err)
		}
		return nil
	}))
	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		if err := tx.PutWager(ctx, domain.Wager{ID: "w1", CreatorID: "a", Stake: money.MustParse("10.00"),
			Status: domain.WagerCompleted, CreatedAt: now}); err != nil {
			return err
		}
		return tx.AppendRevenue(ctx, domain.RevenueEntry{ID: "r1", WagerID: "w1", Amount: money.MustParse("1.00"), CollectedAt: now})
	}))

	rt, err := m.RevenueTotals(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "1.00", rt.Total.String())
	assert.Equal(t, "0.00", rt.Since.String())
	assert.Equal(t, 1, rt.CompletedCount)
	assert.Equal(t, "20.00", rt.TotalVolume.String())

	lt, err := m.LedgerTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.00", lt.Revenue.String())
}
