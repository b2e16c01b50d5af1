// Package errors provides custom error types for the raceatlas engine.
// These errors enable programmatic error checking and let the apply
// entry points convert every failure into a structured result instead
// of propagating raw exceptions to callers.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As alias their standard library equivalents so callers need
// only one errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the raceatlas engine
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrDependencyNotSatisfied indicates a block was requested before its parent block was applied
	ErrDependencyNotSatisfied = errors.New("dependency not satisfied")

	// ErrConflict indicates an operation would overwrite live state without an explicit override
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates that an external service rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNotImplemented indicates that a feature is not yet implemented
	ErrNotImplemented = errors.New("not implemented")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a precondition or validation failure.
// Apply entry points return these inside the application result,
// never as a panic or unhandled error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// DependencyError indicates a chunked application requested a block
// whose parent block has not been applied yet.
type DependencyError struct {
	Block   string
	Missing string
}

// Error implements the error interface
func (e *DependencyError) Error() string {
	return fmt.Sprintf("cannot apply block %s: required block %s has not been applied", e.Block, e.Missing)
}

// Is implements errors.Is support
func (e *DependencyError) Is(target error) bool {
	return target == ErrDependencyNotSatisfied
}

// NewDependencyError creates a new DependencyError
func NewDependencyError(block, missing string) *DependencyError {
	return &DependencyError{Block: block, Missing: missing}
}

// ConflictError indicates an event merge would overwrite a redirect
// pointer that still targets a live event.
type ConflictError struct {
	Resource  string
	ID        string
	Conflicts string
	Message   string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s conflicts with %s: %s", e.Resource, e.ID, e.Conflicts, e.Message)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ApplicationError represents an unexpected failure from the backing
// store during a proposal application write.
type ApplicationError struct {
	Operation string // "create", "update", "delete", "touch"
	Resource  string // "event", "edition", "organizer", "race"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ApplicationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// NewApplicationError creates a new ApplicationError
func NewApplicationError(operation, resource, id string, err error) *ApplicationError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ApplicationError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// APIError represents an error from an external HTTP service such as
// the geocoding lookup.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Service, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsDependencyError checks if an error is an unsatisfied block dependency
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrDependencyNotSatisfied)
}

// IsConflict checks if an error is a merge conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is an operation timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapApplication wraps an error as an ApplicationError
func WrapApplication(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewApplicationError(operation, resource, id, err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(service string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
