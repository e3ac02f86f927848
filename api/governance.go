package api

import (
	"net/http"

	"github.com/gorilla/mux"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// VoteRequest casts a ballot.
type VoteRequest struct {
	Voter        string       `json:"voter"`
	Support      bool         `json:"support"`
	TokenBalance types.Amount `json:"token_balance"`
}

func (a *API) createProposal(w http.ResponseWriter, r *http.Request) {
	var in governance.ProposalInput
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.ledger.CreateProposal(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, p)
}

// listProposals serves ?active=true from ActiveProposals and everything
// else from the filtered listing.
func (a *API) listProposals(w http.ResponseWriter, r *http.Request) {
	active, err := queryBool(r, "active")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if active != nil && *active {
		proposals, err := a.ledger.ActiveProposals(r.Context())
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, http.StatusOK, proposals)
		return
	}

	limit, offset, err := paging(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	proposals, err := a.ledger.ListProposals(r.Context(), governance.ListOpts{
		Status:  governance.Status(q.Get("status")),
		Type:    governance.ProposalType(q.Get("type")),
		Creator: q.Get("creator"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, proposals)
}

func (a *API) getProposal(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, "proposal_id", id.ParseProposalID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.ledger.GetProposal(r.Context(), proposalID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, "proposal_id", id.ParseProposalID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req VoteRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	v, err := a.ledger.CastVote(r.Context(), proposalID, req.Voter, req.Support, req.TokenBalance)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, v)
}

func (a *API) proposalVotes(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, "proposal_id", id.ParseProposalID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	votes, err := a.ledger.ProposalVotes(r.Context(), proposalID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, votes)
}

func (a *API) hasVoted(w http.ResponseWriter, r *http.Request) {
	proposalID, err := pathID(r, "proposal_id", id.ParseProposalID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	voted, err := a.ledger.HasVoted(r.Context(), proposalID, mux.Vars(r)["voter"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"voted": voted})
}

func (a *API) userVotes(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.ledger.UserVotes(r.Context(), mux.Vars(r)["voter"]))
}

func (a *API) finalize(w http.ResponseWriter, r *http.Request) {
	finalized, err := a.ledger.FinalizeEndedProposals(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, finalized)
}

func (a *API) canPropose(w http.ResponseWriter, r *http.Request) {
	balance, err := types.ParseAmount(r.URL.Query().Get("balance"))
	if err != nil {
		a.writeError(w, r, ledger.ValidationError{Field: "balance", Message: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"can_propose": a.ledger.CanPropose(balance)})
}

func (a *API) governanceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.ledger.GovernanceStats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}
