package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

var accountColumns = []string{"id", "balance", "skill_rating", "games_played", "games_won", "total_earnings", "active", "created_at", "updated_at"}

var wagerColumns = []string{"id", "creator_id", "opponent_id", "stake", "platform_fee", "total_prize", "status",
	"stake_committed", "winner_id", "result", "created_at", "accepted_at", "completed_at", "cancelled_at"}

func setupPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewPostgres(sqlxDB), mock, func() { sqlxDB.Close() }
}

func TestPostgres_GetAccount(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("a", "100.00", 1000, 2, 1, "19.00", true, now, now))

	a, err := p.GetAccount(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "100.00", a.Balance.String())
	assert.Equal(t, 1000, a.Rating)
	assert.Equal(t, "19.00", a.TotalEarnings.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAccountNotFound(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = \$1`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := p.GetAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_DriverErrorIsUnavailable(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	mock.ExpectQuery(`(?s)SELECT .+ FROM wagers WHERE id = \$1`).WithArgs("w").WillReturnError(errors.New("conn reset"))

	_, err := p.GetWager(context.Background(), "w")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestPostgres_GetWagerNullables(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM wagers WHERE id = \$1`).
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows(wagerColumns).
			AddRow("w1", "a", "", "10.00", "1.00", "19.00", "open", true, "", nil, now, nil, nil, nil))

	w, err := p.GetWager(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.WagerOpen, w.Status)
	assert.Empty(t, w.OpponentID)
	assert.Nil(t, w.Result)
	assert.Nil(t, w.AcceptedAt)
	assert.Equal(t, "19.00", w.TotalPrize.String())
}

func TestPostgres_UpdateCommitsDebit(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id = ANY\(\$1\) ORDER BY id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("a", "50.00", 1000, 0, 0, "0", true, now, now))
	mock.ExpectExec(`UPDATE accounts\s+SET balance = \$1`).
		WithArgs("40.00", 1000, 0, 0, "0.00", true, sqlmock.AnyArg(), "a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs("t1", "a", "withdrawal", "-10.00", nil, "completed", "pix", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := p.Update(ctx, func(tx Tx) error {
		if err := tx.LockAccounts(ctx, "a"); err != nil {
			return err
		}
		a, err := tx.Account(ctx, "a")
		if err != nil {
			return err
		}
		a.Balance = a.Balance.Sub(money.MustParse("10.00"))
		a.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, domain.Transaction{
			ID: "t1", AccountID: "a", Kind: domain.KindWithdrawal, Amount: money.MustParse("-10.00"),
			Status: domain.TxCompleted, PaymentMethod: "pix", CreatedAt: now,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRollsBackWhenAccountMissing(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM accounts WHERE id = ANY\(\$1\) ORDER BY id FOR UPDATE`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("a", "50.00", 1000, 0, 0, "0", true, now, now))
	mock.ExpectRollback()

	err := p.Update(ctx, func(tx Tx) error { return tx.LockAccounts(ctx, "a", "ghost") })
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_BeginFailureIsUnavailable(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := p.Update(context.Background(), func(Tx) error { return nil })
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestPostgres_ListOpenWagersBuildsFilter(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	now := time.Now()
	minStake := money.MustParse("5.00")
	mock.ExpectQuery(`WHERE status = 'open' AND creator_id <> \$1 AND stake >= \$2 ORDER BY created_at DESC, id DESC LIMIT \$3`).
		WithArgs("a", "5.00", 20).
		WillReturnRows(sqlmock.NewRows(wagerColumns).
			AddRow("w2", "b", "", "10.00", "1.00", "19.00", "open", true, "", nil, now, nil, nil, nil))

	ws, err := p.ListOpenWagers(context.Background(), OpenWagerFilter{ExcludeAccountID: "a", MinStake: &minStake, Limit: 20})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "w2", ws[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListTransactions(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(t.id\) FROM accounts a LEFT JOIN transactions t`).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`FROM transactions\s+WHERE account_id = \$1\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("a", 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "kind", "amount", "wager_id", "status", "payment_method", "description", "created_at"}).
			AddRow("t3", "a", "prize_credit", "19.00", "w1", "completed", "", "", now).
			AddRow("t2", "a", "stake_debit", "-10.00", "w1", "completed", "", "", now))

	txs, total, err := p.ListTransactions(context.Background(), "a", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.KindPrizeCredit, txs[0].Kind)
	assert.Equal(t, "-10.00", txs[1].Amount.String())
}

func TestPostgres_ListTransactionsUnknownAccount(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT COUNT\(t.id\)`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, _, err := p.ListTransactions(context.Background(), "ghost", 20, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_RevenueTotals(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM platform_revenue`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"total", "since"}).AddRow("3.50", "1.00"))
	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(stake \* 2\), 0\) FROM wagers WHERE status = 'completed'`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "volume"}).AddRow(2, "70.00"))

	rt, err := p.RevenueTotals(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, "3.50", rt.Total.String())
	assert.Equal(t, "1.00", rt.Since.String())
	assert.Equal(t, 2, rt.CompletedCount)
	assert.Equal(t, "70.00", rt.TotalVolume.String())
}

func TestPostgres_LedgerTotals(t *testing.T) {
	p, mock, closeDB := setupPostgresMock(t)
	defer closeDB()

	mock.ExpectQuery(`AS transactions_sum`).
		WillReturnRows(sqlmock.NewRows([]string{"balances", "committed_open", "escrow_held", "revenue", "deposits", "withdrawals", "transactions_sum"}).
			AddRow("80.00", "10.00", "0", "1.00", "100.00", "9.00", "80.00"))

	lt, err := p.LedgerTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "80.00", lt.Balances.String())
	assert.Equal(t, "9.00", lt.Withdrawals.String())
	assert.Equal(t, "80.00", lt.TransactionsSum.String())
}
