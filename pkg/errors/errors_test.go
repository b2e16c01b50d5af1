package errors

import (
	"errors"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("event", "100")

	if got := err.Error(); got != "event with ID 100 not found" {
		t.Errorf("unexpected message: %q", got)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound) to be true")
	}
	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("status", "pending", "proposal must be approved")

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected errors.Is(err, ErrInvalidInput) to be true")
	}
	if got := err.Error(); got != "validation failed for field status: proposal must be approved" {
		t.Errorf("unexpected message: %q", got)
	}

	// Without a field the message omits the field clause.
	bare := NewValidationError("", nil, "missing target id")
	if got := bare.Error(); got != "validation failed: missing target id" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestDependencyError(t *testing.T) {
	err := NewDependencyError("organizer", "edition")

	if !IsDependencyError(err) {
		t.Error("expected IsDependencyError to be true")
	}
	want := "cannot apply block organizer: required block edition has not been applied"
	if got := err.Error(); got != want {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{
		Resource:  "event",
		ID:        "100",
		Conflicts: "event 50",
		Message:   "redirect pointer already set",
	}

	if !IsConflict(err) {
		t.Error("expected IsConflict to be true")
	}
}

func TestApplicationErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	err := NewApplicationError("update", "edition", "42", underlying)

	if !errors.Is(err, underlying) {
		t.Error("expected underlying error to be reachable via errors.Is")
	}
	if got := err.Error(); got != "failed to update edition 42: connection reset" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestAPIErrorRateLimited(t *testing.T) {
	err := NewAPIError("geocoder", 429, "too many requests")

	if !IsRateLimited(err) {
		t.Error("expected a 429 APIError to match ErrRateLimited")
	}
	if IsRateLimited(NewAPIError("geocoder", 500, "boom")) {
		t.Error("expected a 500 APIError not to match ErrRateLimited")
	}
}

func TestWrapHelpers(t *testing.T) {
	if WrapValidation("name", nil) != nil {
		t.Error("WrapValidation(nil) should be nil")
	}
	if WrapApplication("create", "race", "1", nil) != nil {
		t.Error("WrapApplication(nil) should be nil")
	}
	wrapped := WrapApplication("create", "race", "1", errors.New("boom"))
	var appErr *ApplicationError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("expected *ApplicationError")
	}
	if appErr.Resource != "race" {
		t.Errorf("unexpected resource: %q", appErr.Resource)
	}
}
