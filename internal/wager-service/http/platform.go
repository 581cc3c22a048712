package httpapi

import "net/http"

func (a *API) platformRevenue(w http.ResponseWriter, r *http.Request) {
	load := a.Query.PlatformRevenue
	if a.Revenue != nil {
		rep, err := a.Revenue.Fetch(r.Context(), load)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}
	rep, err := load(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) reconciliation(w http.ResponseWriter, r *http.Request) {
	rc, err := a.Query.Reconcile(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}
