package wager

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/pool-wager-escrow/internal/shared/metrics"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/escrow"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/ledger"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/settlement"
	"github.com/radieske/pool-wager-escrow/pkg/contracts/events"
)

// StakeCommitPolicy define quando a stake do criador sai do saldo
type StakeCommitPolicy string

const (
	CommitOnCreate StakeCommitPolicy = "on_create"
	CommitOnAccept StakeCommitPolicy = "on_accept"
)

// Publisher publica eventos de ciclo de vida (best effort, após o commit)
type Publisher interface {
	Publish(ctx context.Context, evt events.WagerEvent) error
}

// DepositGuard torna depósitos com referência externa idempotentes
// Begin devolve o ID da transação original quando a referência já foi processada
type DepositGuard interface {
	Begin(ctx context.Context, ref string) (txID string, err error)
	Complete(ctx context.Context, ref, txID string) error
	Abort(ctx context.Context, ref string) error
}

// guardTimeout limita as chamadas de limpeza feitas fora do prazo da operação
const guardTimeout = 2 * time.Second

// detached deriva de ctx um contexto vivo (mantém valores, ignora cancelamento)
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), guardTimeout)
}

type Options struct {
	StakeCommit   StakeCommitPolicy
	OpTimeout     time.Duration
	InitialRating int
}

// Service expõe as operações externas do núcleo: contas, depósitos e o ciclo de vida das wagers
type Service struct {
	log    *zap.Logger
	store  repo.Store
	ledger *ledger.Ledger
	escrow *escrow.Manager
	engine *settlement.Engine
	pub    Publisher
	guard  DepositGuard
	opts   Options

	now   func() time.Time
	newID func() string
}

func NewService(log *zap.Logger, store repo.Store, l *ledger.Ledger, em *escrow.Manager, engine *settlement.Engine, opts Options) *Service {
	if opts.StakeCommit == "" {
		opts.StakeCommit = CommitOnCreate
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}
	if opts.InitialRating == 0 {
		opts.InitialRating = domain.DefaultRating
	}
	return &Service{
		log:    log,
		store:  store,
		ledger: l,
		escrow: em,
		engine: engine,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// WithPublisher liga a publicação de eventos
func (s *Service) WithPublisher(p Publisher) *Service {
	s.pub = p
	return s
}

// WithDepositGuard liga a idempotência por referência externa
func (s *Service) WithDepositGuard(g DepositGuard) *Service {
	s.guard = g
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// run aplica o timeout da operação e registra log e métricas do resultado
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error, fields ...zap.Field) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil && !domain.IsDomain(err) && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		err = domain.Unavailable(err)
	}

	fields = append(fields, zap.String("op", op))
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
		s.log.Info("operation ok", fields...)
	case domain.IsDomain(err):
		outcome = metrics.OutcomeRejected
		s.log.Debug("operation rejected", append(fields, zap.Error(err))...)
	default:
		outcome = metrics.OutcomeError
		s.log.Error("operation failed", append(fields, zap.Error(err))...)
	}
	metrics.RecordOperation(op, outcome, time.Since(start))
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, w domain.Wager) {
	if s.pub == nil {
		return
	}
	evt := events.WagerEvent{
		Type:        eventType,
		WagerID:     w.ID,
		CreatorID:   w.CreatorID,
		OpponentID:  w.OpponentID,
		WinnerID:    w.WinnerID,
		Status:      string(w.Status),
		Stake:       w.Stake.String(),
		PlatformFee: w.PlatformFee.String(),
		TotalPrize:  w.TotalPrize.String(),
		Ts:          s.now(),
	}
	// o estado já foi confirmado; falha aqui não desfaz a operação
	if err := s.pub.Publish(ctx, evt); err != nil {
		metrics.RecordEvent(eventType, metrics.OutcomeError)
		s.log.Warn("publish wager event", zap.String("type", eventType), zap.String("wagerId", w.ID), zap.Error(err))
		return
	}
	metrics.RecordEvent(eventType, metrics.OutcomeOK)
}
