package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
)

// PurchaseRequest buys a template.
type PurchaseRequest struct {
	Buyer     string `json:"buyer"`
	Signature string `json:"signature,omitempty"`
}

// RatingRequest rates an owned template.
type RatingRequest struct {
	Rater  string `json:"rater"`
	Rating int    `json:"rating"`
}

func (a *API) listTemplate(w http.ResponseWriter, r *http.Request) {
	var in marketplace.TemplateInput
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	t, err := a.ledger.ListTemplate(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, t)
}

func (a *API) listTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	featured, err := queryBool(r, "featured")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	templates, err := a.ledger.ListTemplates(r.Context(), marketplace.ListOpts{
		Category: marketplace.Category(q.Get("category")),
		Creator:  q.Get("creator"),
		Featured: featured,
		Query:    q.Get("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, templates)
}

func (a *API) getTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := pathID(r, "template_id", id.ParseTemplateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	t, err := a.ledger.GetTemplate(r.Context(), templateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, t)
}

func (a *API) purchaseTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := pathID(r, "template_id", id.ParseTemplateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req PurchaseRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.ledger.PurchaseTemplate(r.Context(), templateID, req.Buyer, req.Signature)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, p)
}

func (a *API) rateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := pathID(r, "template_id", id.ParseTemplateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req RatingRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	t, err := a.ledger.RateTemplate(r.Context(), templateID, req.Rater, req.Rating)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, t)
}

func (a *API) isOwned(w http.ResponseWriter, r *http.Request) {
	templateID, err := pathID(r, "template_id", id.ParseTemplateID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	owned, err := a.ledger.IsOwned(r.Context(), templateID, mux.Vars(r)["buyer"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"owned": owned})
}

func (a *API) ownedTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := a.ledger.OwnedTemplates(r.Context(), mux.Vars(r)["buyer"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, templates)
}

func (a *API) creatorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.ledger.CreatorStats(r.Context(), mux.Vars(r)["creator"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}

func (a *API) marketplaceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.ledger.MarketplaceStats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}
