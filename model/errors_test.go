package model

import (
	"fmt"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "Client not found"}
	want := "NOT_FOUND: Client not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestNewValidationError(t *testing.T) {
	details := []FieldError{
		{Field: "auth.account", Code: FieldRequired, Message: "Required"},
	}
	e := NewValidationError(details)
	if e.Code != ErrValidationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationError)
	}
	if len(e.Details) != 1 {
		t.Fatalf("Details length = %d, want 1", len(e.Details))
	}
	if e.Details[0].Field != "auth.account" {
		t.Errorf("Details[0].Field = %q, want %q", e.Details[0].Field, "auth.account")
	}
}

func TestNewSessionNotFoundError(t *testing.T) {
	e := NewSessionNotFoundError("abc")
	if e.Code != ErrSessionNotFound {
		t.Errorf("Code = %q, want %q", e.Code, ErrSessionNotFound)
	}
	if e.Message != `form session "abc" not found` {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewMutationFailedError("boom"))
	if !HasCode(wrapped, ErrMutationFailed) {
		t.Error("HasCode(wrapped, MUTATION_FAILED) = false, want true")
	}
	if HasCode(wrapped, ErrNotFound) {
		t.Error("HasCode(wrapped, NOT_FOUND) = true, want false")
	}
	if HasCode(fmt.Errorf("plain"), ErrNotFound) {
		t.Error("HasCode(plain error) = true, want false")
	}
}

func TestNewBackendUnavailableError(t *testing.T) {
	e := NewBackendUnavailableError()
	if e.Code != ErrBackendUnavailable {
		t.Errorf("Code = %q, want %q", e.Code, ErrBackendUnavailable)
	}
}
