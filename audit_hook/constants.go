package audithook

// Action constants for audit events.
const (
	// Staking actions
	ActionStakeCreated   = "stake.created"
	ActionRewardsClaimed = "stake.rewards_claimed"
	ActionUnstaked       = "stake.closed"

	// Governance actions
	ActionProposalCreated   = "proposal.created"
	ActionVoteCast          = "vote.cast"
	ActionProposalFinalized = "proposal.finalized"

	// Marketplace actions
	ActionTemplateListed    = "template.listed"
	ActionTemplatePurchased = "template.purchased"
	ActionTemplateRated     = "template.rated"

	// Premium actions
	ActionTokensBurned = "premium.burned"

	// Failures
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceStake    = "stake"
	ResourceProposal = "proposal"
	ResourceVote     = "vote"
	ResourceTemplate = "template"
	ResourcePurchase = "purchase"
	ResourceBurn     = "burn"
	ResourceLedger   = "ledger"
)

// Category constants for audit events.
const (
	CategoryStaking     = "staking"
	CategoryGovernance  = "governance"
	CategoryMarketplace = "marketplace"
	CategoryPremium     = "premium"
	CategoryAccess      = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
