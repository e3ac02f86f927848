// Package ledger is the token-economics engine behind zkRune: staking
// rewards, quadratic governance voting, the circuit template marketplace
// and premium access bought by burning tokens.
//
// Ledger is a library first. The HTTP surface in package api and the
// tokenledger command are thin shells over the same *Ledger value. It
// provides:
//
//   - Staking positions with lock-period multipliers, daily reward accrual
//     and an early-unstake penalty
//   - Proposals with square-root vote weights, an absolute quorum and a
//     background sweep that finalizes ended votes
//   - Template listings with a platform fee split, single-purchase
//     ownership and running-average ratings
//   - Burn-for-premium tiers that expire after a validity window
//   - Pluggable storage (memory, SQLite, PostgreSQL, MongoDB, LevelDB)
//   - Plugin hooks for metrics and audit trails
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/zkrune/tokenledger"
//	    "github.com/zkrune/tokenledger/store/memory"
//	)
//
//	l := ledger.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Staking locks tokens for one of the configured periods:
//
//	pos, err := l.CreateStake(ctx, wallet, ledger.Tokens(1000), 90)
//	paid, err := l.ClaimRewards(ctx, pos.ID, wallet)
//
// Governance weighs each vote by the square root of the voter's balance:
//
//	p, err := l.CreateProposal(ctx, governance.ProposalInput{Type: governance.TypeFeature, Title: "Dark mode"})
//	v, err := l.CastVote(ctx, p.ID, wallet, true, ledger.Tokens(400)) // weight 20
//
// Templates are bought once per wallet; the creator keeps the price less
// the platform fee:
//
//	purchase, err := l.PurchaseTemplate(ctx, templateID, wallet, signature)
//
// Premium tiers follow the tokens burned within the current window:
//
//	res, err := l.BurnForPremium(ctx, premium.BurnRequest{Wallet: wallet, TargetTier: premium.TierPro})
//
// # Amounts
//
// All amounts are fixed-point integers with six decimals (types.Amount).
// Rewards and fees round down to the base unit; vote weights are exact
// integer square roots.
//
// # Errors
//
// Operations return sentinel errors such as ErrAlreadyVoted or
// ErrNothingToClaim. ErrorCode maps any error to the stable code reported
// to clients, and IsRetryable singles out storage faults.
//
// # TypeID
//
// All records use TypeID for globally unique, type-safe identifiers:
//
//	stake_01h2xcejqtf2nbrexx3vqjhp41  // Staking position
//	prop_01h2xcejqtf2nbrexx3vqjhp41   // Proposal
//	tmpl_01h455vb4pex5vsknk084sn02q   // Marketplace template
package ledger
