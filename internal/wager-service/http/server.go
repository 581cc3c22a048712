package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/cache"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/dto"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/query"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/wager"
)

// API expõe as operações de contas, wagers e relatórios da plataforma
type API struct {
	Log     *zap.Logger
	Wagers  *wager.Service
	Query   *query.Service
	Revenue *cache.RevenueCache // opcional; nil lê direto do store
	Limiter *RateLimiter        // opcional

	// AllowedOrigins liga CORS para front-ends no navegador; vazio desliga
	AllowedOrigins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(MetricsMiddleware)
	if len(a.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         86400,
		}))
	}
	if a.Limiter != nil {
		r.Use(a.Limiter.Middleware)
	}

	r.Route("/v1/accounts", func(r chi.Router) {
		r.Post("/", a.createAccount)
		r.Get("/{id}", a.getAccount)
		r.Get("/{id}/stats", a.accountStats)
		r.Get("/{id}/transactions", a.transactionHistory)
		r.Post("/{id}/deposit", a.deposit)
		r.Post("/{id}/withdraw", a.withdraw)
		r.Post("/{id}/deactivate", a.deactivate)
	})

	r.Route("/v1/wagers", func(r chi.Router) {
		r.Post("/", a.createWager)
		r.Get("/open", a.listOpenWagers)
		r.Get("/{id}", a.getWager)
		r.Get("/{id}/escrow", a.getEscrow)
		r.Post("/{id}/accept", a.acceptWager)
		r.Post("/{id}/complete", a.completeWager)
		r.Post("/{id}/cancel", a.cancelWager)
	})

	r.Get("/v1/platform/revenue", a.platformRevenue)
	r.Get("/v1/platform/reconciliation", a.reconciliation)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor traduz os tipos de erro do núcleo em status HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidWinner),
		errors.Is(err, domain.ErrSelfMatchNotAllowed):
		return http.StatusBadRequest
	case domain.IsDomain(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

// decodeJSON aceita corpo vazio (campos obrigatórios ficam para a validação)
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// bind decodifica e valida o corpo; em caso de erro já escreve a resposta 400
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return false
	}
	if fields := validateStruct(v); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload", Fields: fields})
		return false
	}
	return true
}
