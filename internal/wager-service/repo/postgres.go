package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
)

const (
	accountCols = `id, balance, skill_rating, games_played, games_won, total_earnings, active, created_at, updated_at`
	wagerCols   = `id, creator_id, COALESCE(opponent_id, '') AS opponent_id, stake, platform_fee, total_prize, status,
		stake_committed, COALESCE(winner_id, '') AS winner_id, result, created_at, accepted_at, completed_at, cancelled_at`
	escrowCols = `id, wager_id, player1_id, player2_id, player1_amount, player2_amount, platform_fee, total_held, status,
		created_at, resolved_at`
	txCols = `id, account_id, kind, amount, COALESCE(wager_id, '') AS wager_id, status, payment_method, description, created_at`
)

// Postgres implementa Store com transações SQL e locks de linha (SELECT ... FOR UPDATE)
type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return domain.Unavailable(p.db.PingContext(ctx)) }

// Update abre uma transação, executa fn e faz commit; qualquer erro desfaz tudo
func (p *Postgres) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Unavailable(err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx, accounts: make(map[string]domain.Account)}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

// wagerRow existe porque result é JSONB anulável e json.RawMessage não aceita NULL no Scan
type wagerRow struct {
	domain.Wager
	ResultJSON []byte `db:"result"`
}

func (r wagerRow) toDomain() domain.Wager {
	w := r.Wager
	if len(r.ResultJSON) > 0 {
		w.Result = json.RawMessage(r.ResultJSON)
	}
	return w
}

// storeErr converte erros do driver: sem linhas vira NotFound, o resto vira StoreUnavailable
func storeErr(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return domain.Unavailable(err)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type pgTx struct {
	tx       *sqlx.Tx
	wagerID  string
	locked   bool
	accounts map[string]domain.Account
}

func (t *pgTx) LockWager(ctx context.Context, id string) (domain.Wager, error) {
	if t.locked {
		return domain.Wager{}, fmt.Errorf("%w: wager locked after accounts", errLockOrder)
	}
	var row wagerRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+wagerCols+` FROM wagers WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return domain.Wager{}, storeErr(err, "wager", id)
	}
	t.wagerID = id
	return row.toDomain(), nil
}

// LockAccounts trava todas as contas de uma vez, ordenadas por id, evitando deadlock
func (t *pgTx) LockAccounts(ctx context.Context, ids ...string) error {
	if t.locked {
		return fmt.Errorf("%w: accounts locked twice", errLockOrder)
	}
	t.locked = true

	want := make(map[string]bool, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !want[id] {
			want[id] = true
			uniq = append(uniq, id)
		}
	}

	var rows []domain.Account
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT `+accountCols+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(uniq))
	if err != nil {
		return domain.Unavailable(err)
	}
	for _, a := range rows {
		t.accounts[a.ID] = a
	}
	for _, id := range uniq {
		if _, ok := t.accounts[id]; !ok {
			return domain.NotFound("account", id)
		}
	}
	return nil
}

func (t *pgTx) Account(_ context.Context, id string) (domain.Account, error) {
	a, ok := t.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: account %s not locked", errLockOrder, id)
	}
	return a, nil
}

func (t *pgTx) Escrow(ctx context.Context, wagerID string) (domain.EscrowRecord, error) {
	var e domain.EscrowRecord
	err := t.tx.GetContext(ctx, &e, `SELECT `+escrowCols+` FROM escrows WHERE wager_id = $1 FOR UPDATE`, wagerID)
	if err != nil {
		return domain.EscrowRecord{}, storeErr(err, "escrow", wagerID)
	}
	return e, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, balance, skill_rating, games_played, games_won, total_earnings, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Balance, a.Rating, a.GamesPlayed, a.GamesWon, a.TotalEarnings, a.Active, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return domain.Unavailable(err)
	}
	t.accounts[a.ID] = a
	return nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, a domain.Account) error {
	if _, ok := t.accounts[a.ID]; !ok {
		return fmt.Errorf("%w: account %s not locked", errLockOrder, a.ID)
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account %s: %w", a.ID, domain.ErrInsufficientFunds)
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, skill_rating = $2, games_played = $3, games_won = $4, total_earnings = $5, active = $6, updated_at = $7
		WHERE id = $8`,
		a.Balance, a.Rating, a.GamesPlayed, a.GamesWon, a.TotalEarnings, a.Active, a.UpdatedAt, a.ID)
	if err != nil {
		return domain.Unavailable(err)
	}
	t.accounts[a.ID] = a
	return nil
}

// PutWager insere ou atualiza; a referência wager→conta é garantida pelas FKs
func (t *pgTx) PutWager(ctx context.Context, w domain.Wager) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wagers (id, creator_id, opponent_id, stake, platform_fee, total_prize, status, stake_committed,
			winner_id, result, created_at, accepted_at, completed_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			opponent_id = EXCLUDED.opponent_id,
			status = EXCLUDED.status,
			stake_committed = EXCLUDED.stake_committed,
			winner_id = EXCLUDED.winner_id,
			result = EXCLUDED.result,
			accepted_at = EXCLUDED.accepted_at,
			completed_at = EXCLUDED.completed_at,
			cancelled_at = EXCLUDED.cancelled_at`,
		w.ID, w.CreatorID, nullIfEmpty(w.OpponentID), w.Stake, w.PlatformFee, w.TotalPrize, w.Status, w.StakeCommitted,
		nullIfEmpty(w.WinnerID), nullJSON(w.Result), w.CreatedAt, w.AcceptedAt, w.CompletedAt, w.CancelledAt)
	if err != nil {
		return domain.Unavailable(err)
	}
	t.wagerID = w.ID
	return nil
}

func (t *pgTx) PutEscrow(ctx context.Context, e domain.EscrowRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO escrows (id, wager_id, player1_id, player2_id, player1_amount, player2_amount, platform_fee, total_held,
			status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (wager_id) DO UPDATE SET status = EXCLUDED.status, resolved_at = EXCLUDED.resolved_at`,
		e.ID, e.WagerID, e.Player1ID, e.Player2ID, e.Player1Amount, e.Player2Amount, e.PlatformFee, e.TotalHeld,
		e.Status, e.CreatedAt, e.ResolvedAt)
	if err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr domain.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount, wager_id, status, payment_method, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tr.ID, tr.AccountID, tr.Kind, tr.Amount, nullIfEmpty(tr.WagerID), tr.Status, tr.PaymentMethod, tr.Description, tr.CreatedAt)
	if err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

func (t *pgTx) AppendRevenue(ctx context.Context, r domain.RevenueEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO platform_revenue (id, wager_id, amount, fee_rate, collected_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.WagerID, r.Amount, r.FeeRate, r.CollectedAt)
	if err != nil {
		return domain.Unavailable(err)
	}
	return nil
}

// --- leituras ---

func (p *Postgres) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := p.db.GetContext(ctx, &a, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
	return a, storeErr(err, "account", id)
}

func (p *Postgres) GetWager(ctx context.Context, id string) (domain.Wager, error) {
	var row wagerRow
	if err := p.db.GetContext(ctx, &row, `SELECT `+wagerCols+` FROM wagers WHERE id = $1`, id); err != nil {
		return domain.Wager{}, storeErr(err, "wager", id)
	}
	return row.toDomain(), nil
}

func (p *Postgres) GetEscrow(ctx context.Context, wagerID string) (domain.EscrowRecord, error) {
	var e domain.EscrowRecord
	err := p.db.GetContext(ctx, &e, `SELECT `+escrowCols+` FROM escrows WHERE wager_id = $1`, wagerID)
	return e, storeErr(err, "escrow", wagerID)
}

func (p *Postgres) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	var t domain.Transaction
	err := p.db.GetContext(ctx, &t, `SELECT `+txCols+` FROM transactions WHERE id = $1`, id)
	return t, storeErr(err, "transaction", id)
}

func (p *Postgres) ListOpenWagers(ctx context.Context, f OpenWagerFilter) ([]domain.Wager, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + wagerCols + ` FROM wagers WHERE status = 'open'`)
	if f.ExcludeAccountID != "" {
		args = append(args, f.ExcludeAccountID)
		fmt.Fprintf(&sb, ` AND creator_id <> $%d`, len(args))
	}
	if f.MinStake != nil {
		args = append(args, *f.MinStake)
		fmt.Fprintf(&sb, ` AND stake >= $%d`, len(args))
	}
	if f.MaxStake != nil {
		args = append(args, *f.MaxStake)
		fmt.Fprintf(&sb, ` AND stake <= $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	var rows []wagerRow
	if err := p.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, domain.Unavailable(err)
	}
	out := make([]domain.Wager, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (p *Postgres) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := p.db.GetContext(ctx, &total, `
		SELECT COUNT(t.id) FROM accounts a LEFT JOIN transactions t ON t.account_id = a.id
		WHERE a.id = $1 GROUP BY a.id`, accountID)
	if err != nil {
		return nil, 0, storeErr(err, "account", accountID)
	}

	txs := make([]domain.Transaction, 0, limit)
	err = p.db.SelectContext(ctx, &txs, `
		SELECT `+txCols+` FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, 0, domain.Unavailable(err)
	}
	return txs, total, nil
}

func (p *Postgres) RevenueTotals(ctx context.Context, since time.Time) (RevenueTotals, error) {
	var rt RevenueTotals
	err := p.db.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(amount) FILTER (WHERE collected_at >= $1), 0)
		FROM platform_revenue`, since).Scan(&rt.Total, &rt.Since)
	if err != nil {
		return RevenueTotals{}, domain.Unavailable(err)
	}
	err = p.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stake * 2), 0) FROM wagers WHERE status = 'completed'`).
		Scan(&rt.CompletedCount, &rt.TotalVolume)
	if err != nil {
		return RevenueTotals{}, domain.Unavailable(err)
	}
	return rt, nil
}

func (p *Postgres) LedgerTotals(ctx context.Context) (LedgerTotals, error) {
	var lt LedgerTotals
	err := p.db.GetContext(ctx, &lt, `
		SELECT
			(SELECT COALESCE(SUM(balance), 0) FROM accounts) AS balances,
			(SELECT COALESCE(SUM(stake), 0) FROM wagers WHERE status = 'open' AND stake_committed) AS committed_open,
			(SELECT COALESCE(SUM(total_held), 0) FROM escrows WHERE status = 'holding') AS escrow_held,
			(SELECT COALESCE(SUM(amount), 0) FROM platform_revenue) AS revenue,
			(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status = 'completed' AND kind = 'deposit') AS deposits,
			(SELECT COALESCE(-SUM(amount), 0) FROM transactions WHERE status = 'completed' AND kind = 'withdrawal') AS withdrawals,
			(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status = 'completed') AS transactions_sum`)
	if err != nil {
		return LedgerTotals{}, domain.Unavailable(err)
	}
	return lt, nil
}

var _ Store = (*Postgres)(nil)
