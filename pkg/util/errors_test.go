package util

import (
	"errors"
	"testing"
)

func TestErrorUnwrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("bad input"), ErrValidation},
		{"not found", NewNotFoundError("machine", "S1"), ErrNotFound},
		{"state conflict", NewStateConflictError("machine S1", "unreachable", ""), ErrStateConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("%v does not unwrap to %v", tt.err, tt.sentinel)
			}
		})
	}
}

func TestValidationErrorMessages(t *testing.T) {
	single := NewValidationError("file is empty")
	if single.Error() != "validation failed: file is empty" {
		t.Errorf("single = %q", single.Error())
	}

	multi := NewValidationError("first", "second")
	want := "validation failed:\n  - first\n  - second"
	if multi.Error() != want {
		t.Errorf("multi = %q", multi.Error())
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := NewNotFoundError("ticket", "abc-123")
	if err.Error() != "ticket 'abc-123' not found" {
		t.Errorf("message = %q", err.Error())
	}
}
