package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	sharedcache "github.com/radieske/pool-wager-escrow/internal/shared/cache"
	"github.com/radieske/pool-wager-escrow/internal/shared/config"
	"github.com/radieske/pool-wager-escrow/internal/shared/db"
	"github.com/radieske/pool-wager-escrow/internal/shared/kafka"
	"github.com/radieske/pool-wager-escrow/internal/shared/logger"
	"github.com/radieske/pool-wager-escrow/internal/shared/metrics"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/cache"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/consumer"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/escrow"
	httpapi "github.com/radieske/pool-wager-escrow/internal/wager-service/http"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/idempotency"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/ledger"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/producer"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/query"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/repo"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/settlement"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/wager"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Inicializa logger estruturado
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service",
		zap.String("store", cfg.StoreBackend),
		zap.String("feeRate", cfg.PlatformFeeRate.String()),
		zap.String("rating", cfg.RatingStrategy),
		zap.String("stakeCommit", cfg.StakeCommit))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store: memória (dev/testes) ou Postgres com migrations embutidas
	var store repo.Store
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		if cfg.RunMigrations {
			if err := db.RunMigrations(pg); err != nil {
				log.Fatal("postgres migrations", zap.Error(err))
			}
		}
		store = repo.NewPostgres(pg)
	default:
		store = repo.NewMemory()
	}

	// Núcleo: ledger -> escrow -> liquidação -> máquina de estados
	if err := settlement.ValidateRate(cfg.PlatformFeeRate); err != nil {
		log.Fatal("platform fee rate", zap.Error(err))
	}
	rating, err := settlement.NewRatingStrategy(cfg.RatingStrategy, cfg.RatingDelta, cfg.EloK)
	if err != nil {
		log.Fatal("rating strategy", zap.Error(err))
	}
	l := ledger.New()
	em := escrow.NewManager(l)
	engine := settlement.NewEngine(em, rating, cfg.PlatformFeeRate)
	svc := wager.NewService(log, store, l, em, engine, wager.Options{
		StakeCommit:   wager.StakeCommitPolicy(cfg.StakeCommit),
		OpTimeout:     cfg.OpTimeout,
		InitialRating: cfg.InitialRating,
	})
	qs := query.NewService(store)

	api := &httpapi.API{
		Log:     log,
		Wagers:  svc,
		Query:   qs,
		Limiter: httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute),

		AllowedOrigins: cfg.Origins(),
	}

	// Redis (opcional): idempotência de depósitos e cache do relatório de receita
	health := []metrics.HealthFunc{store.Ping}
	if cfg.RedisAddr != "" {
		rctx, rcancel := context.WithTimeout(ctx, 3*time.Second)
		rdb, err := sharedcache.ConnectRedis(rctx, cfg.RedisAddr)
		rcancel()
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		svc.WithDepositGuard(idempotency.NewRedisGuard(rdb, cfg.IdempotencyTTL))
		api.Revenue = cache.NewRevenueCache(rdb, cfg.RevenueCacheTTL, log)
		health = append(health, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	// Kafka (opcional): eventos de ciclo de vida e consumo de resultados de partida
	var wg sync.WaitGroup
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		events := kafka.NewWriter(brokers, cfg.TopicWagerEvents)
		defer events.Close()
		svc.WithPublisher(producer.NewKafkaPublisher(events))

		dlq := kafka.NewWriter(brokers, cfg.TopicGameResultsDLQ)
		defer dlq.Close()
		reader := kafka.NewReader(brokers, cfg.TopicGameResults, cfg.ServiceName)
		defer reader.Close()

		proc := consumer.NewProcessor(log, reader, dlq, svc)
		if api.Revenue != nil {
			proc.OnCompleted = func(ctx context.Context, _ domain.Wager) { api.Revenue.Invalidate(ctx) }
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("game result consumer stopped", zap.Error(err))
			}
		}()
		log.Info("kafka enabled", zap.Strings("brokers", brokers))
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		for _, h := range health {
			if err := h(ctx); err != nil {
				return err
			}
		}
		return nil
	}, func(err error) { log.Error("metrics srv", zap.Error(err)) })
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Servidor HTTP público (API de wagers)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api srv", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	wg.Wait()
	log.Info("stopped")
}
