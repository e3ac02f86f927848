package ledger

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidAmount, CodeInvalidAmount},
		{fmt.Errorf("wrapped: %w", ErrAlreadyVoted), CodeAlreadyVoted},
		{ErrProposalNotFound, CodeProposalNotFound},
		{ErrTemplateNotFound, CodeNotFound},
		{ErrPositionNotFound, CodeNotFound},
		{ErrInactive, CodeInactive},
		{ErrAlreadyInactive, CodeAlreadyInactive},
		{ErrPositionChanged, CodeUnavailable},
		{ValidationError{Field: "type", Message: "unknown"}, CodeInvalidInput},
		{storeError("get", errors.New("connection refused")), CodeUnavailable},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStoreError(t *testing.T) {
	if err := storeError("op", ErrAlreadyOwned); err != ErrAlreadyOwned {
		t.Errorf("domain error rewrapped: %v", err)
	}

	raw := errors.New("disk full")
	err := storeError("record purchase", raw)
	if !IsRetryable(err) || !errors.Is(err, raw) {
		t.Errorf("storage fault not marked: %v", err)
	}
	if IsValidation(err) || IsNotFound(err) {
		t.Errorf("storage fault misclassified: %v", err)
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.ErrOrNil() != nil {
		t.Error("empty MultiError should be nil")
	}
	m.Add(nil)
	m.Add(ValidationError{Field: "a", Message: "bad"})
	m.Add(ErrInvalidAmount)
	if !m.HasErrors() || len(m.Errors) != 2 {
		t.Fatalf("errors = %v", m.Errors)
	}
	err := m.ErrOrNil()
	if !errors.Is(err, ErrInvalidAmount) || !errors.Is(err, ErrInvalidInput) {
		t.Errorf("MultiError does not unwrap: %v", err)
	}
}
