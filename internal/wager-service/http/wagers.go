package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/pool-wager-escrow/internal/wager-service/dto"
	"github.com/radieske/pool-wager-escrow/internal/wager-service/query"
	"github.com/radieske/pool-wager-escrow/pkg/money"
)

func (a *API) createWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWagerRequest
	if !bind(w, r, &req) {
		return
	}
	stake, err := parseAmount("stake", req.Stake)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	wg, err := a.Wagers.CreateWager(r.Context(), req.CreatorID, stake)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wg)
}

// listOpenWagers: GET ?exclude=<accountId>&min_stake=&max_stake=&limit=
func (a *API) listOpenWagers(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := query.OpenWagersQuery{ExcludeAccountID: qs.Get("exclude")}

	for _, p := range []struct {
		name string
		dst  **money.Amount
	}{{"min_stake", &q.MinStake}, {"max_stake", &q.MaxStake}} {
		s := qs.Get(p.name)
		if s == "" {
			continue
		}
		v, err := parseAmount(p.name, s)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		*p.dst = &v
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	q.Limit = limit

	ws, err := a.Query.ListOpenWagers(r.Context(), q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (a *API) getWager(w http.ResponseWriter, r *http.Request) {
	wg, err := a.Query.GetWager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

func (a *API) getEscrow(w http.ResponseWriter, r *http.Request) {
	e, err := a.Query.GetEscrow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) acceptWager(w http.ResponseWriter, r *http.Request) {
	var req dto.AcceptWagerRequest
	if !bind(w, r, &req) {
		return
	}
	wg, err := a.Wagers.AcceptWager(r.Context(), chi.URLParam(r, "id"), req.OpponentID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

func (a *API) completeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteWagerRequest
	if !bind(w, r, &req) {
		return
	}
	wg, err := a.Wagers.CompleteWager(r.Context(), chi.URLParam(r, "id"), req.WinnerID, req.Result)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.Revenue != nil {
		a.Revenue.Invalidate(r.Context())
	}
	writeJSON(w, http.StatusOK, wg)
}

func (a *API) cancelWager(w http.ResponseWriter, r *http.Request) {
	wg, err := a.Wagers.CancelWager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}
