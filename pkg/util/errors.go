// Package util provides logging helpers and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the controller's error classes. HTTP handlers map
// these to status codes: validation -> 400, not found -> 404,
// state conflict -> 409, everything else -> 500.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("resource not found")
	ErrStateConflict = errors.New("state conflict")
	ErrInternal      = errors.New("internal error")
)

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// NotFoundError represents a missing machine or ticket
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

// StateConflictError represents an operation rejected because of the
// resource's current state (e.g. releasing an unreachable machine).
type StateConflictError struct {
	Resource string
	State    string
	Detail   string
}

func (e *StateConflictError) Error() string {
	msg := fmt.Sprintf("%s is %s", e.Resource, e.State)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}

// NewStateConflictError creates a state-conflict error
func NewStateConflictError(resource, state, detail string) *StateConflictError {
	return &StateConflictError{Resource: resource, State: state, Detail: detail}
}
