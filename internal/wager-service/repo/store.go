package repo

import (
	"context"
	"time"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// Store é o dono exclusivo de contas, wagers, escrows, ledger e receita
// Toda mutação passa por Update; leituras fora de Update veem apenas estado confirmado
type Store interface {
	Reader
	// Update executa fn numa unidade de trabalho: ou tudo que fn gravou é
	// confirmado, ou nada (fn retornou erro). Locks são liberados ao final.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx é a visão de uma unidade de trabalho
//
// Ordem de locks: no máximo uma wager (LockWager) e depois, numa única
// chamada, as contas (LockAccounts), que são travadas em ordem crescente de ID.
type Tx interface {
	LockWager(ctx context.Context, id string) (domain.Wager, error)
	LockAccounts(ctx context.Context, ids ...string) error

	// Account devolve a conta travada (ou criada) nesta unidade, com alterações pendentes
	Account(ctx context.Context, id string) (domain.Account, error)
	// Escrow devolve o escrow da wager travada nesta unidade
	Escrow(ctx context.Context, wagerID string) (domain.EscrowRecord, error)

	CreateAccount(ctx context.Context, a domain.Account) error
	UpdateAccount(ctx context.Context, a domain.Account) error
	PutWager(ctx context.Context, w domain.Wager) error
	PutEscrow(ctx context.Context, e domain.EscrowRecord) error
	AppendTransaction(ctx context.Context, t domain.Transaction) error
	AppendRevenue(ctx context.Context, r domain.RevenueEntry) error
}

// Reader são as consultas somente leitura sobre o estado confirmado
type Reader interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	GetWager(ctx context.Context, id string) (domain.Wager, error)
	GetEscrow(ctx context.Context, wagerID string) (domain.EscrowRecord, error)
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	ListOpenWagers(ctx context.Context, f OpenWagerFilter) ([]domain.Wager, error)
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int, error)
	RevenueTotals(ctx context.Context, since time.Time) (RevenueTotals, error)
	LedgerTotals(ctx context.Context) (LedgerTotals, error)
}

// OpenWagerFilter filtra wagers abertas; campos nil/vazios não filtram
type OpenWagerFilter struct {
	ExcludeAccountID string
	MinStake         *money.Amount
	MaxStake         *money.Amount
	Limit            int
}

// Match aplica o filtro a uma wager (usado pelo store em memória)
func (f OpenWagerFilter) Match(w domain.Wager) bool {
	if w.Status != domain.WagerOpen {
		return false
	}
	if f.ExcludeAccountID != "" && w.CreatorID == f.ExcludeAccountID {
		return false
	}
	if f.MinStake != nil && w.Stake.LessThan(*f.MinStake) {
		return false
	}
	if f.MaxStake != nil && w.Stake.GreaterThan(*f.MaxStake) {
		return false
	}
	return true
}

type RevenueTotals struct {
	Total          money.Amount
	Since          money.Amount
	CompletedCount int
	TotalVolume    money.Amount
}

// LedgerTotals são os termos da equação de conservação
type LedgerTotals struct {
	Balances        money.Amount `db:"balances"`
	CommittedOpen   money.Amount `db:"committed_open"`
	EscrowHeld      money.Amount `db:"escrow_held"`
	Revenue         money.Amount `db:"revenue"`
	Deposits        money.Amount `db:"deposits"`
	Withdrawals     money.Amount `db:"withdrawals"`
	TransactionsSum money.Amount `db:"transactions_sum"`
}
