package ledger

import "github.com/zkrune/tokenledger/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Amount constructors
var (
	Tokens      = types.Tokens
	Units       = types.Units
	ParseAmount = types.ParseAmount
	Sum         = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
