package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
)

var errLockOrder = errors.New("lock order violation")

// Memory implementa Store em memória
// mu protege apenas a estrutura dos mapas; a exclusão por conta/wager é feita por locks
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	wagers   map[string]domain.Wager
	escrows  map[string]domain.EscrowRecord // por wager_id
	txs      []domain.Transaction
	txByAcc  map[string][]int
	txByID   map[string]int
	revenue  []domain.RevenueEntry
	locks    *keyLocks
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]domain.Account),
		wagers:   make(map[string]domain.Wager),
		escrows:  make(map[string]domain.EscrowRecord),
		txByAcc:  make(map[string][]int),
		txByID:   make(map[string]int),
		locks:    newKeyLocks(),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

// Update aplica as alterações de fn só se fn não retornar erro
// Os locks são liberados depois do commit
func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		m:        m,
		held:     make(map[string]bool),
		accounts: make(map[string]domain.Account),
		wagers:   make(map[string]domain.Wager),
		escrows:  make(map[string]domain.EscrowRecord),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}
	m.commit(tx)
	return nil
}

func (m *Memory) commit(tx *memTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range tx.accounts {
		m.accounts[id] = a
	}
	for id, w := range tx.wagers {
		m.wagers[id] = w
	}
	for id, e := range tx.escrows {
		m.escrows[id] = e
	}
	for _, t := range tx.txs {
		m.txByID[t.ID] = len(m.txs)
		m.txByAcc[t.AccountID] = append(m.txByAcc[t.AccountID], len(m.txs))
		m.txs = append(m.txs, t)
	}
	m.revenue = append(m.revenue, tx.revenue...)
}

type memTx struct {
	m *Memory

	held         map[string]bool // chaves de lock obtidas
	keys         []string
	wagerID      string
	accountsDone bool

	newAccounts map[string]bool
	accounts    map[string]domain.Account
	wagers      map[string]domain.Wager
	escrows     map[string]domain.EscrowRecord
	txs         []domain.Transaction
	revenue     []domain.RevenueEntry
}

func wagerKey(id string) string   { return "wager:" + id }
func accountKey(id string) string { return "account:" + id }

func (t *memTx) acquire(ctx context.Context, key string) error {
	if err := t.m.locks.lock(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.keys = append(t.keys, key)
	return nil
}

func (t *memTx) release() {
	for i := len(t.keys) - 1; i >= 0; i-- {
		t.m.locks.unlock(t.keys[i])
	}
	t.keys = nil
}

func (t *memTx) LockWager(ctx context.Context, id string) (domain.Wager, error) {
	if t.accountsDone {
		return domain.Wager{}, fmt.Errorf("%w: wager locked after accounts", errLockOrder)
	}
	if t.wagerID != "" && t.wagerID != id {
		return domain.Wager{}, fmt.Errorf("%w: second wager in one unit of work", errLockOrder)
	}
	if t.wagerID == "" {
		if err := t.acquire(ctx, wagerKey(id)); err != nil {
			return domain.Wager{}, err
		}
		t.wagerID = id
	}
	if w, ok := t.wagers[id]; ok {
		return w, nil
	}
	t.m.mu.RLock()
	w, ok := t.m.wagers[id]
	t.m.mu.RUnlock()
	if !ok {
		return domain.Wager{}, domain.NotFound("wager", id)
	}
	return w, nil
}

func (t *memTx) LockAccounts(ctx context.Context, ids ...string) error {
	if t.accountsDone {
		return fmt.Errorf("%w: accounts locked twice", errLockOrder)
	}
	t.accountsDone = true

	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	for _, id := range uniq {
		if t.held[accountKey(id)] {
			continue
		}
		if err := t.acquire(ctx, accountKey(id)); err != nil {
			return err
		}
	}

	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	for _, id := range uniq {
		if _, ok := t.accounts[id]; ok {
			continue
		}
		if _, ok := t.m.accounts[id]; !ok {
			return domain.NotFound("account", id)
		}
	}
	return nil
}

func (t *memTx) Account(_ context.Context, id string) (domain.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}
	if !t.held[accountKey(id)] {
		return domain.Account{}, fmt.Errorf("%w: account %s not locked", errLockOrder, id)
	}
	t.m.mu.RLock()
	a, ok := t.m.accounts[id]
	t.m.mu.RUnlock()
	if !ok {
		return domain.Account{}, domain.NotFound("account", id)
	}
	return a, nil
}

func (t *memTx) Escrow(_ context.Context, wagerID string) (domain.EscrowRecord, error) {
	if wagerID != t.wagerID {
		return domain.EscrowRecord{}, fmt.Errorf("%w: escrow of unlocked wager %s", errLockOrder, wagerID)
	}
	if e, ok := t.escrows[wagerID]; ok {
		return e, nil
	}
	t.m.mu.RLock()
	e, ok := t.m.escrows[wagerID]
	t.m.mu.RUnlock()
	if !ok {
		return domain.EscrowRecord{}, domain.NotFound("escrow", wagerID)
	}
	return e, nil
}

func (t *memTx) CreateAccount(_ context.Context, a domain.Account) error {
	t.m.mu.RLock()
	_, exists := t.m.accounts[a.ID]
	t.m.mu.RUnlock()
	if exists {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	// conta nova: ID inédito, ninguém mais pode disputá-la
	t.accounts[a.ID] = a
	return nil
}

func (t *memTx) UpdateAccount(_ context.Context, a domain.Account) error {
	if _, staged := t.accounts[a.ID]; !staged && !t.held[accountKey(a.ID)] {
		return fmt.Errorf("%w: account %s not locked", errLockOrder, a.ID)
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account %s: %w", a.ID, domain.ErrInsufficientFunds)
	}
	t.accounts[a.ID] = a
	return nil
}

func (t *memTx) PutWager(_ context.Context, w domain.Wager) error {
	if w.ID != t.wagerID {
		t.m.mu.RLock()
		_, exists := t.m.wagers[w.ID]
		t.m.mu.RUnlock()
		if exists {
			return fmt.Errorf("%w: wager %s not locked", errLockOrder, w.ID)
		}
		if _, staged := t.wagers[w.ID]; !staged && t.wagerID != "" {
			return fmt.Errorf("%w: second wager in one unit of work", errLockOrder)
		}
		t.wagerID = w.ID // wager nova: ID inédito
	}
	t.wagers[w.ID] = w
	return nil
}

func (t *memTx) PutEscrow(_ context.Context, e domain.EscrowRecord) error {
	if e.WagerID != t.wagerID {
		return fmt.Errorf("%w: escrow of unlocked wager %s", errLockOrder, e.WagerID)
	}
	t.escrows[e.WagerID] = e
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr domain.Transaction) error {
	if _, staged := t.accounts[tr.AccountID]; !staged && !t.held[accountKey(tr.AccountID)] {
		return fmt.Errorf("%w: account %s not locked", errLockOrder, tr.AccountID)
	}
	t.txs = append(t.txs, tr)
	return nil
}

func (t *memTx) AppendRevenue(_ context.Context, r domain.RevenueEntry) error {
	if r.WagerID != t.wagerID {
		return fmt.Errorf("%w: revenue for unlocked wager %s", errLockOrder, r.WagerID)
	}
	t.revenue = append(t.revenue, r)
	return nil
}

// --- leituras ---

func (m *Memory) GetAccount(_ context.Context, id string) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.NotFound("account", id)
	}
	return a, nil
}

func (m *Memory) GetWager(_ context.Context, id string) (domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wagers[id]
	if !ok {
		return domain.Wager{}, domain.NotFound("wager", id)
	}
	return w, nil
}

func (m *Memory) GetEscrow(_ context.Context, wagerID string) (domain.EscrowRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.escrows[wagerID]
	if !ok {
		return domain.EscrowRecord{}, domain.NotFound("escrow", wagerID)
	}
	return e, nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.txByID[id]
	if !ok {
		return domain.Transaction{}, domain.NotFound("transaction", id)
	}
	return m.txs[i], nil
}

// ListOpenWagers devolve as wagers abertas mais recentes primeiro
func (m *Memory) ListOpenWagers(_ context.Context, f OpenWagerFilter) ([]domain.Wager, error) {
	m.mu.RLock()
	out := make([]domain.Wager, 0)
	for _, w := range m.wagers {
		if f.Match(w) {
			out = append(out, w)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ListTransactions pagina o histórico da conta, mais recente primeiro
func (m *Memory) ListTransactions(_ context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.accounts[accountID]; !ok {
		return nil, 0, domain.NotFound("account", accountID)
	}
	idx := m.txByAcc[accountID]
	total := len(idx)
	out := make([]domain.Transaction, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.txs[idx[i]])
	}
	return out, total, nil
}

func (m *Memory) RevenueTotals(_ context.Context, since time.Time) (RevenueTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rt RevenueTotals
	for _, r := range m.revenue {
		rt.Total = rt.Total.Add(r.Amount)
		if !r.CollectedAt.Before(since) {
			rt.Since = rt.Since.Add(r.Amount)
		}
	}
	for _, w := range m.wagers {
		if w.Status == domain.WagerCompleted {
			rt.CompletedCount++
			rt.TotalVolume = rt.TotalVolume.Add(w.Stake.MulInt(2))
		}
	}
	return rt, nil
}

func (m *Memory) LedgerTotals(_ context.Context) (LedgerTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var lt LedgerTotals
	for _, a := range m.accounts {
		lt.Balances = lt.Balances.Add(a.Balance)
	}
	for _, w := range m.wagers {
		if w.Status == domain.WagerOpen && w.StakeCommitted {
			lt.CommittedOpen = lt.CommittedOpen.Add(w.Stake)
		}
	}
	for _, e := range m.escrows {
		if e.Status == domain.EscrowHolding {
			lt.EscrowHeld = lt.EscrowHeld.Add(e.TotalHeld)
		}
	}
	for _, r := range m.revenue {
		lt.Revenue = lt.Revenue.Add(r.Amount)
	}
	for _, t := range m.txs {
		if t.Status != domain.TxCompleted {
			continue
		}
		lt.TransactionsSum = lt.TransactionsSum.Add(t.Amount)
		switch t.Kind {
		case domain.KindDeposit:
			lt.Deposits = lt.Deposits.Add(t.Amount)
		case domain.KindWithdrawal:
			lt.Withdrawals = lt.Withdrawals.Add(t.Amount.Neg())
		}
	}
	return lt, nil
}

var _ Store = (*Memory)(nil)
