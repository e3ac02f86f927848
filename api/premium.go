package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/types"
)

// TotalBurnedResponse reports the sum of all recorded burns.
type TotalBurnedResponse struct {
	TotalBurned types.Amount `json:"total_burned"`
}

func (a *API) burn(w http.ResponseWriter, r *http.Request) {
	var req premium.BurnRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.ledger.BurnForPremium(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Record != nil {
		status = http.StatusCreated
	}
	a.writeJSON(w, status, result)
}

// simulateBurn ignores any signature in the body.
func (a *API) simulateBurn(w http.ResponseWriter, r *http.Request) {
	var req premium.BurnRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.ledger.SimulateBurn(r.Context(), req.Wallet, req.Amount, req.TargetTier)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Record != nil {
		status = http.StatusCreated
	}
	a.writeJSON(w, status, result)
}

func (a *API) burnHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	burns, err := a.ledger.BurnHistory(r.Context(), r.URL.Query().Get("wallet"), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, burns)
}

func (a *API) totalBurned(w http.ResponseWriter, r *http.Request) {
	total, err := a.ledger.TotalBurned(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, TotalBurnedResponse{TotalBurned: total})
}

func (a *API) tiers(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.ledger.Tiers())
}

func (a *API) premiumStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.ledger.PremiumStatus(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, st)
}

func (a *API) nextTier(w http.ResponseWriter, r *http.Request) {
	next, err := a.ledger.NextTier(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, next)
}

func (a *API) featureAccess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	allowed, err := a.ledger.HasFeatureAccess(r.Context(), vars["wallet"], vars["feature"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}
