package staking

import (
	"context"
	"time"

	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/types"
)

// Store persists staking positions. ClaimRewards and ClosePosition are
// conditional writes: they apply only if the position is still in the
// state the caller observed.
type Store interface {
	CreatePosition(ctx context.Context, p *Position) error
	GetPosition(ctx context.Context, positionID id.StakeID) (*Position, error)
	ListPositions(ctx context.Context, opts ListOpts) ([]*Position, error)

	// ClaimRewards moves LastClaimAt to claimedAt and adds amount to
	// TotalClaimed if the position is active and still at version.
	ClaimRewards(ctx context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error

	// ClosePosition marks an active position inactive and adds rewards to
	// TotalClaimed if it is still at version. A position that moved on
	// since it was read fails with ErrPositionChanged.
	ClosePosition(ctx context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error
}

// ListOpts filters ListPositions.
type ListOpts struct {
	Staker     string
	ActiveOnly bool
	Limit      int
	Offset     int
}
