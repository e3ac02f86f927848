package ledger

import "github.com/zkrune/tokenledger/id"

// ID is the primary identifier type for all ledger records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
