package premium

import (
	"context"

	"github.com/zkrune/tokenledger/types"
)

// ApplyFunc computes a wallet's new status from its stored one, which is
// nil for a first burn.
type ApplyFunc func(current *Status) (*Status, error)

// Store persists premium statuses and the burn log.
type Store interface {
	GetStatus(ctx context.Context, wallet string) (*Status, error)

	// ApplyBurn reads the wallet's status, calls apply, and writes the
	// returned status together with rec in one atomic step. apply may fill
	// in rec before it is written.
	ApplyBurn(ctx context.Context, rec *BurnRecord, apply ApplyFunc) (*Status, error)

	// ListBurns returns burn records newest first.
	ListBurns(ctx context.Context, opts BurnListOpts) ([]*BurnRecord, error)

	// SumBurned totals every stored burn record.
	SumBurned(ctx context.Context) (types.Amount, error)
}

// BurnListOpts filters ListBurns.
type BurnListOpts struct {
	Wallet string
	Limit  int
}
