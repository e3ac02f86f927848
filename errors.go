package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for ledger failures. Validation and not-found errors are
// returned as values and never leave partial writes behind.
var (
	// General errors
	ErrNotFound      = errors.New("ledger: not found")
	ErrAlreadyExists = errors.New("ledger: already exists")
	ErrInvalidInput  = errors.New("ledger: invalid input")

	// Staking errors
	ErrInvalidAmount     = errors.New("ledger: invalid amount")
	ErrInvalidLockPeriod = errors.New("ledger: invalid lock period")
	ErrPositionNotFound  = errors.New("ledger: stake position not found")
	ErrInactive          = errors.New("ledger: stake position is inactive")
	ErrAlreadyInactive   = errors.New("ledger: stake position already closed")
	ErrNothingToClaim    = errors.New("ledger: nothing to claim")
	ErrPositionChanged   = errors.New("ledger: stake position changed concurrently")

	// Governance errors
	ErrInsufficientTokens = errors.New("ledger: insufficient tokens")
	ErrAlreadyVoted       = errors.New("ledger: already voted")
	ErrProposalNotFound   = errors.New("ledger: proposal not found")
	ErrVotingClosed       = errors.New("ledger: voting closed")

	// Marketplace errors
	ErrTemplateNotFound = errors.New("ledger: template not found")
	ErrAlreadyOwned     = errors.New("ledger: template already owned")
	ErrNotOwned         = errors.New("ledger: template not owned")
	ErrInvalidRating    = errors.New("ledger: invalid rating")

	// Premium errors
	ErrStatusNotFound = errors.New("ledger: premium status not found")
	ErrUnknownTier    = errors.New("ledger: unknown tier")

	// Store errors
	ErrStoreUnavailable  = errors.New("ledger: store unavailable")
	ErrStoreClosed       = errors.New("ledger: store is closed")
	ErrTransactionFailed = errors.New("ledger: transaction failed")
	ErrMigrationFailed   = errors.New("ledger: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError collects several errors, used for config validation.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "ledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("ledger: %d errors occurred (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add appends err if it is non-nil.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e if it holds errors, nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrProposalNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrStatusNotFound)
}

// IsValidation returns true if the caller supplied input the ledger
// rejected. These errors are final for the given input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidLockPeriod) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrAlreadyInactive) ||
		errors.Is(err, ErrNothingToClaim) ||
		errors.Is(err, ErrInsufficientTokens) ||
		errors.Is(err, ErrAlreadyVoted) ||
		errors.Is(err, ErrVotingClosed) ||
		errors.Is(err, ErrAlreadyOwned) ||
		errors.Is(err, ErrNotOwned) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrUnknownTier) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsRetryable returns true if the error came from the storage layer and
// the caller may retry. The ledger itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrPositionChanged)
}

// Error codes reported to clients.
const (
	CodeInvalidAmount      = "InvalidAmount"
	CodeInvalidLockPeriod  = "InvalidLockPeriod"
	CodeInsufficientTokens = "InsufficientTokens"
	CodeAlreadyVoted       = "AlreadyVoted"
	CodeProposalNotFound   = "ProposalNotFound"
	CodeVotingClosed       = "VotingClosed"
	CodeNotFound           = "NotFound"
	CodeAlreadyOwned       = "AlreadyOwned"
	CodeInvalidRating      = "InvalidRating"
	CodeNotOwned           = "NotOwned"
	CodeNothingToClaim     = "NothingToClaim"
	CodeInactive           = "Inactive"
	CodeAlreadyInactive    = "AlreadyInactive"
	CodeInvalidInput       = "InvalidInput"
	CodeUnavailable        = "Unavailable"
	CodeInternal           = "Internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidLockPeriod, CodeInvalidLockPeriod},
	{ErrInsufficientTokens, CodeInsufficientTokens},
	{ErrAlreadyVoted, CodeAlreadyVoted},
	{ErrProposalNotFound, CodeProposalNotFound},
	{ErrVotingClosed, CodeVotingClosed},
	{ErrAlreadyOwned, CodeAlreadyOwned},
	{ErrInvalidRating, CodeInvalidRating},
	{ErrNotOwned, CodeNotOwned},
	{ErrNothingToClaim, CodeNothingToClaim},
	{ErrAlreadyInactive, CodeAlreadyInactive},
	{ErrInactive, CodeInactive},
	{ErrUnknownTier, CodeInvalidInput},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrAlreadyExists, CodeInvalidInput},
	{ErrStoreUnavailable, CodeUnavailable},
	{ErrTransactionFailed, CodeUnavailable},
	{ErrPositionChanged, CodeUnavailable},
	{ErrStoreClosed, CodeUnavailable},
}

// ErrorCode maps err to the client-facing code. It returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	if IsNotFound(err) {
		return CodeNotFound
	}
	return CodeInternal
}

// isDomainError reports whether err is one of the ledger's own errors, as
// opposed to a raw storage failure.
func isDomainError(err error) bool {
	return IsNotFound(err) || IsValidation(err) || IsRetryable(err) ||
		errors.Is(err, ErrStoreClosed) || errors.Is(err, ErrMigrationFailed)
}

// storeError passes ledger errors through and marks anything else as a
// storage fault.
func storeError(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
