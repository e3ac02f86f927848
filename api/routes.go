package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts every ledger route on r.
func (a *API) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)

	// Staking
	s := r.PathPrefix("/staking").Subrouter()
	s.HandleFunc("/positions", a.createStake).Methods(http.MethodPost)
	s.HandleFunc("/positions", a.listPositions).Methods(http.MethodGet)
	s.HandleFunc("/positions/{position_id}", a.getPosition).Methods(http.MethodGet)
	s.HandleFunc("/positions/{position_id}/claim", a.claimRewards).Methods(http.MethodPost)
	s.HandleFunc("/positions/{position_id}/unstake", a.unstake).Methods(http.MethodPost)
	s.HandleFunc("/stakers/{staker}", a.stakingInfo).Methods(http.MethodGet)
	s.HandleFunc("/lock-periods", a.lockPeriods).Methods(http.MethodGet)
	s.HandleFunc("/stats", a.stakingStats).Methods(http.MethodGet)

	// Governance
	g := r.PathPrefix("/governance").Subrouter()
	g.HandleFunc("/proposals", a.createProposal).Methods(http.MethodPost)
	g.HandleFunc("/proposals", a.listProposals).Methods(http.MethodGet)
	g.HandleFunc("/proposals/{proposal_id}", a.getProposal).Methods(http.MethodGet)
	g.HandleFunc("/proposals/{proposal_id}/votes", a.castVote).Methods(http.MethodPost)
	g.HandleFunc("/proposals/{proposal_id}/votes", a.proposalVotes).Methods(http.MethodGet)
	g.HandleFunc("/proposals/{proposal_id}/votes/{voter}", a.hasVoted).Methods(http.MethodGet)
	g.HandleFunc("/voters/{voter}/votes", a.userVotes).Methods(http.MethodGet)
	g.HandleFunc("/finalize", a.finalize).Methods(http.MethodPost)
	g.HandleFunc("/can-propose", a.canPropose).Methods(http.MethodGet)
	g.HandleFunc("/stats", a.governanceStats).Methods(http.MethodGet)

	// Marketplace
	m := r.PathPrefix("/marketplace").Subrouter()
	m.HandleFunc("/templates", a.listTemplate).Methods(http.MethodPost)
	m.HandleFunc("/templates", a.listTemplates).Methods(http.MethodGet)
	m.HandleFunc("/templates/{template_id}", a.getTemplate).Methods(http.MethodGet)
	m.HandleFunc("/templates/{template_id}/purchase", a.purchaseTemplate).Methods(http.MethodPost)
	m.HandleFunc("/templates/{template_id}/ratings", a.rateTemplate).Methods(http.MethodPost)
	m.HandleFunc("/templates/{template_id}/owners/{buyer}", a.isOwned).Methods(http.MethodGet)
	m.HandleFunc("/buyers/{buyer}/templates", a.ownedTemplates).Methods(http.MethodGet)
	m.HandleFunc("/creators/{creator}/stats", a.creatorStats).Methods(http.MethodGet)
	m.HandleFunc("/stats", a.marketplaceStats).Methods(http.MethodGet)

	// Premium
	p := r.PathPrefix("/premium").Subrouter()
	p.HandleFunc("/burns", a.burn).Methods(http.MethodPost)
	p.HandleFunc("/burns/simulate", a.simulateBurn).Methods(http.MethodPost)
	p.HandleFunc("/burns", a.burnHistory).Methods(http.MethodGet)
	p.HandleFunc("/burns/total", a.totalBurned).Methods(http.MethodGet)
	p.HandleFunc("/tiers", a.tiers).Methods(http.MethodGet)
	p.HandleFunc("/wallets/{wallet}", a.premiumStatus).Methods(http.MethodGet)
	p.HandleFunc("/wallets/{wallet}/next-tier", a.nextTier).Methods(http.MethodGet)
	p.HandleFunc("/wallets/{wallet}/features/{feature}", a.featureAccess).Methods(http.MethodGet)
}
