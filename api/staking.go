package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// StakeRequest opens a position.
type StakeRequest struct {
	Staker         string       `json:"staker"`
	Amount         types.Amount `json:"amount"`
	LockPeriodDays int          `json:"lock_period_days"`
}

// StakerRequest identifies the caller acting on a position.
type StakerRequest struct {
	Staker string `json:"staker"`
}

// PositionView is a position with its live reward figures.
type PositionView struct {
	*staking.Position
	PendingRewards types.Amount      `json:"pending_rewards"`
	Unlock         staking.Countdown `json:"unlock"`
}

// ClaimResponse reports the amount paid by a claim.
type ClaimResponse struct {
	Amount types.Amount `json:"amount"`
}

func (a *API) view(pos *staking.Position) PositionView {
	return PositionView{
		Position:       pos,
		PendingRewards: a.ledger.PendingRewards(pos),
		Unlock:         a.ledger.TimeUntilUnlock(pos),
	}
}

func (a *API) createStake(w http.ResponseWriter, r *http.Request) {
	var req StakeRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	pos, err := a.ledger.CreateStake(r.Context(), req.Staker, req.Amount, req.LockPeriodDays)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, a.view(pos))
}

func (a *API) listPositions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	positions, err := a.ledger.ListPositions(r.Context(), staking.ListOpts{
		Staker:     r.URL.Query().Get("staker"),
		ActiveOnly: active != nil && *active,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, a.view(pos))
	}
	a.writeJSON(w, http.StatusOK, views)
}

func (a *API) getPosition(w http.ResponseWriter, r *http.Request) {
	positionID, err := pathID(r, "position_id", id.ParseStakeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	pos, err := a.ledger.GetPosition(r.Context(), positionID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, a.view(pos))
}

func (a *API) claimRewards(w http.ResponseWriter, r *http.Request) {
	positionID, err := pathID(r, "position_id", id.ParseStakeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req StakerRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	amount, err := a.ledger.ClaimRewards(r.Context(), positionID, req.Staker)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ClaimResponse{Amount: amount})
}

func (a *API) unstake(w http.ResponseWriter, r *http.Request) {
	positionID, err := pathID(r, "position_id", id.ParseStakeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req StakerRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	settlement, err := a.ledger.Unstake(r.Context(), positionID, req.Staker)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, settlement)
}

func (a *API) stakingInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.ledger.UserStakingInfo(r.Context(), mux.Vars(r)["staker"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, info)
}

func (a *API) lockPeriods(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.ledger.LockPeriodOptions())
}

func (a *API) stakingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.ledger.StakingStats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}
