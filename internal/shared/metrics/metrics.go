package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados de operação usados como label
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // regra de negócio
	OutcomeError    = "error"    // infraestrutura
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_operations_total",
			Help: "operações do núcleo por resultado",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wager_operation_duration_seconds",
			Help:    "duração das operações do núcleo",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PlatformRevenueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wager_platform_revenue_total",
			Help: "taxas coletadas pela plataforma (unidade monetária)",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_events_published_total",
			Help: "eventos de ciclo de vida publicados no kafka",
		},
		[]string{"type", "outcome"},
	)

	GameResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_game_results_total",
			Help: "resultados de partida consumidos, por destino",
		},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_http_requests_total",
			Help: "requisições HTTP",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wager_http_request_duration_seconds",
			Help:    "duração das requisições HTTP",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordOperation(operation, outcome string, d time.Duration) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func RecordRevenue(amount float64) {
	PlatformRevenueTotal.Add(amount)
}

func RecordEvent(eventType, outcome string) {
	EventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}

func RecordGameResult(outcome string) {
	GameResultsTotal.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
