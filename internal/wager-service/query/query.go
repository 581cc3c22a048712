package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service é a superfície de leitura; nunca altera estado
type Service struct {
	store repo.Reader
	now   func() time.Time
}

func NewService(store repo.Reader) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type OpenWagersQuery struct {
	ExcludeAccountID string
	MinStake         *money.Amount
	MaxStake         *money.Amount
	Limit            int
}

// ListOpenWagers lista wagers abertas, mais recentes primeiro
func (s *Service) ListOpenWagers(ctx context.Context, q OpenWagersQuery) ([]domain.Wager, error) {
	if q.MinStake != nil && q.MaxStake != nil && q.MinStake.GreaterThan(*q.MaxStake) {
		return nil, fmt.Errorf("min stake %s > max stake %s: %w", q.MinStake, q.MaxStake, domain.ErrInvalidAmount)
	}
	return s.store.ListOpenWagers(ctx, repo.OpenWagerFilter{
		ExcludeAccountID: q.ExcludeAccountID,
		MinStake:         q.MinStake,
		MaxStake:         q.MaxStake,
		Limit:            clamp(q.Limit, DefaultLimit, MaxLimit),
	})
}

// HistoryPage é uma página do histórico; Page começa em 1
type HistoryPage struct {
	Items    []domain.Transaction `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
	Pages    int                  `json:"pages"`
}

func (s *Service) TransactionHistory(ctx context.Context, accountID string, page, pageSize int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	pageSize = clamp(pageSize, DefaultPageSize, MaxPageSize)

	items, total, err := s.store.ListTransactions(ctx, accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return HistoryPage{}, err
	}
	if items == nil {
		items = []domain.Transaction{}
	}
	return HistoryPage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    (total + pageSize - 1) / pageSize,
	}, nil
}

type RevenueReport struct {
	TotalRevenue       money.Amount `json:"total_revenue"`
	TodayRevenue       money.Amount `json:"today_revenue"`
	CompletedCount     int          `json:"completed_count"`
	TotalVolume        money.Amount `json:"total_volume"`
	AverageFeePerWager money.Amount `json:"average_fee_per_wager"`
}

// PlatformRevenue agrega a receita; "hoje" é o dia corrente em UTC
func (s *Service) PlatformRevenue(ctx context.Context) (RevenueReport, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	rt, err := s.store.RevenueTotals(ctx, today)
	if err != nil {
		return RevenueReport{}, err
	}
	return RevenueReport{
		TotalRevenue:       rt.Total,
		TodayRevenue:       rt.Since,
		CompletedCount:     rt.CompletedCount,
		TotalVolume:        rt.TotalVolume,
		AverageFeePerWager: rt.Total.DivRound(int64(rt.CompletedCount)),
	}, nil
}

type AccountStats struct {
	AccountID     string          `json:"account_id"`
	Balance       money.Amount    `json:"balance"`
	Rating        int             `json:"skill_rating"`
	GamesPlayed   int             `json:"games_played"`
	GamesWon      int             `json:"games_won"`
	WinRate       decimal.Decimal `json:"win_rate"`
	TotalEarnings money.Amount    `json:"total_earnings"`
	AveragePrize  money.Amount    `json:"average_prize_per_game"`
	Active        bool            `json:"active"`
}

// AccountStats deriva taxa de vitória e prêmio médio; sem partidas ambos são zero
func (s *Service) AccountStats(ctx context.Context, accountID string) (AccountStats, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return AccountStats{}, err
	}
	st := AccountStats{
		AccountID:     a.ID,
		Balance:       a.Balance,
		Rating:        a.Rating,
		GamesPlayed:   a.GamesPlayed,
		GamesWon:      a.GamesWon,
		WinRate:       decimal.Zero,
		TotalEarnings: a.TotalEarnings,
		AveragePrize:  a.TotalEarnings.DivRound(int64(a.GamesPlayed)),
		Active:        a.Active,
	}
	if a.GamesPlayed > 0 {
		st.WinRate = decimal.NewFromInt(int64(a.GamesWon)).
			DivRound(decimal.NewFromInt(int64(a.GamesPlayed)), 4)
	}
	return st, nil
}

// Reconciliation expõe os termos da equação de conservação:
// saldos + stakes abertas comprometidas + escrow retido + receita = depósitos - saques
type Reconciliation struct {
	Balances        money.Amount `json:"balances"`
	CommittedOpen   money.Amount `json:"committed_open_stakes"`
	EscrowHeld      money.Amount `json:"escrow_held"`
	Revenue         money.Amount `json:"revenue"`
	Deposits        money.Amount `json:"deposits"`
	Withdrawals     money.Amount `json:"withdrawals"`
	TransactionsSum money.Amount `json:"transactions_sum"`
	Discrepancy     money.Amount `json:"discrepancy"`
	Balanced        bool         `json:"balanced"`
}

func (s *Service) Reconcile(ctx context.Context) (Reconciliation, error) {
	lt, err := s.store.LedgerTotals(ctx)
	if err != nil {
		return Reconciliation{}, err
	}
	held := money.Sum(lt.Balances, lt.CommittedOpen, lt.EscrowHeld, lt.Revenue)
	diff := held.Sub(lt.Deposits.Sub(lt.Withdrawals))
	return Reconciliation{
		Balances:        lt.Balances,
		CommittedOpen:   lt.CommittedOpen,
		EscrowHeld:      lt.EscrowHeld,
		Revenue:         lt.Revenue,
		Deposits:        lt.Deposits,
		Withdrawals:     lt.Withdrawals,
		TransactionsSum: lt.TransactionsSum,
		Discrepancy:     diff,
		Balanced:        diff.IsZero() && lt.TransactionsSum.Equal(lt.Balances),
	}, nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *Service) GetWager(ctx context.Context, id string) (domain.Wager, error) {
	return s.store.GetWager(ctx, id)
}

func (s *Service) GetEscrow(ctx context.Context, wagerID string) (domain.EscrowRecord, error) {
	return s.store.GetEscrow(ctx, wagerID)
}

func clamp(v, def, max int) int {
	switch {
	case v <= 0:
		return def
	case v > max:
		return max
	default:
		return v
	}
}
