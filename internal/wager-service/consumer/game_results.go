package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/pool-wager-escrow/internal/shared/kafka"
	"github.com/radieske/pool-wager-escrow/internal/shared/metrics"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/pkg/contracts/events"
)

// Destinos de uma mensagem processada (label de métrica)
const (
	OutcomeCompleted = "completed"
	OutcomeStale     = "stale" // wager já encerrada; redelivery ou cancelamento
	OutcomeDLQ       = "dlq"
)

// Completer é a operação do núcleo que o consumer dispara
type Completer interface {
	CompleteWager(ctx context.Context, wagerID, winnerID string, result json.RawMessage) (domain.Wager, error)
}

// Processor consome resultados de partida e conclui as wagers correspondentes
// Falhas de infraestrutura são repetidas; rejeições definitivas vão para a DLQ
type Processor struct {
	Log     *zap.Logger
	Reader  skafka.MessageReader
	DLQ     skafka.MessageWriter // opcional
	Wagers  Completer
	Retries int
	Backoff func(attempt int) time.Duration

	// OnCompleted roda após cada wager liquidada (ex.: invalidar cache de receita)
	OnCompleted func(ctx context.Context, w domain.Wager)
}

func NewProcessor(log *zap.Logger, r skafka.MessageReader, dlq skafka.MessageWriter, wagers Completer) *Processor {
	return &Processor{
		Log:     log,
		Reader:  r,
		DLQ:     dlq,
		Wagers:  wagers,
		Retries: 3,
		Backoff: func(attempt int) time.Duration { return time.Duration(300*(attempt+1)) * time.Millisecond },
	}
}

// Run inicia o loop principal; termina quando ctx é cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			sleep(ctx, 500*time.Millisecond)
			continue
		}

		if err := p.handleUntilDone(ctx, m); err != nil {
			return err
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handleUntilDone insiste na mesma mensagem até concluí-la ou mandá-la para a DLQ
// O reader avança o offset a cada fetch: buscar a próxima e confirmá-la
// confirmaria também esta, e o resultado se perderia
func (p *Processor) handleUntilDone(ctx context.Context, m kafka.Message) error {
	for attempt := 0; ; attempt++ {
		err := p.Handle(ctx, m)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Log.Error("game result not handled, retrying", zap.Int64("offset", m.Offset), zap.Int("attempt", attempt+1), zap.Error(err))
		if !sleep(ctx, p.Backoff(min(attempt, p.Retries))) {
			return ctx.Err()
		}
	}
}

// Handle processa uma mensagem; erro significa que ela não pode ser confirmada
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var res events.GameResult
	if err := json.Unmarshal(m.Value, &res); err != nil {
		return p.deadLetter(ctx, m, fmt.Errorf("decode: %w", err))
	}
	if res.WagerID == "" || res.WinnerID == "" {
		return p.deadLetter(ctx, m, errors.New("missing wager_id or winner_id"))
	}
	log := p.Log.With(zap.String("wagerId", res.WagerID), zap.String("winnerId", res.WinnerID))

	var (
		w   domain.Wager
		err error
	)
	for attempt := 0; ; attempt++ {
		w, err = p.Wagers.CompleteWager(ctx, res.WagerID, res.WinnerID, res.GameData)
		if err == nil || !errors.Is(err, domain.ErrStoreUnavailable) || attempt >= p.Retries {
			break
		}
		log.Warn("complete wager retry", zap.Int("attempt", attempt+1), zap.Error(err))
		if !sleep(ctx, p.Backoff(attempt)) {
			return ctx.Err()
		}
	}

	switch {
	case err == nil:
		metrics.RecordGameResult(OutcomeCompleted)
		log.Info("wager completed from game result")
		if p.OnCompleted != nil {
			p.OnCompleted(ctx, w)
		}
		return nil
	case errors.Is(err, domain.ErrWagerNotActive):
		metrics.RecordGameResult(OutcomeStale)
		log.Info("game result for closed wager ignored", zap.Error(err))
		return nil
	default:
		return p.deadLetter(ctx, m, err)
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	metrics.RecordGameResult(OutcomeDLQ)
	p.Log.Warn("game result to dlq", zap.Int64("offset", m.Offset), zap.Error(cause))
	if p.DLQ == nil {
		return nil
	}
	return p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source_offset", Value: []byte(fmt.Sprint(m.Offset))},
		},
		Time: time.Now(),
	})
}

// sleep espera d ou até ctx ser cancelado; false se cancelado
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
