package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/domain"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/dto"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/wager"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

// parseAmount converte o texto do payload; vazio vale zero
func parseAmount(field, s string) (money.Amount, error) {
	if s == "" {
		return money.Zero, nil
	}
	a, err := money.Parse(s)
	if err != nil {
		return money.Zero, fmt.Errorf("%s %q: %w", field, s, domain.ErrInvalidAmount)
	}
	return a, nil
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if !bind(w, r, &req) {
		return
	}
	initial, err := parseAmount("initial_balance", req.InitialBalance)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	acc, err := a.Wagers.CreateAccount(r.Context(), initial)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := a.Query.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) accountStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Query.AccountStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// transactionHistory: GET ?page=1&page_size=20
func (a *API) transactionHistory(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	size, err := intParam(r, "page_size")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	hp, err := a.Query.TransactionHistory(r.Context(), chi.URLParam(r, "id"), page, size)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hp)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if !bind(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	tr, err := a.Wagers.Deposit(r.Context(), wager.DepositInput{
		AccountID:   chi.URLParam(r, "id"),
		Amount:      amount,
		Method:      req.PaymentMethod,
		ExternalRef: req.ExternalRef,
		Description: req.Description,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if !bind(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	tr, err := a.Wagers.Withdraw(r.Context(), chi.URLParam(r, "id"), amount, req.PaymentMethod)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (a *API) deactivate(w http.ResponseWriter, r *http.Request) {
	acc, err := a.Wagers.DeactivateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// intParam lê um inteiro opcional da query string; ausente vale 0 (default do serviço)
func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}
