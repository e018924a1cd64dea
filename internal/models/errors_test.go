package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"generation", &GenerationError{Cause: errors.New("exhausted")}, "GenerationError"},
		{"repository", &RepositoryError{Repo: "calc-1-round-1", Cause: errors.New("boom")}, "RepositoryError"},
		{"revision", &RevisionError{Task: "calc-1", Round: 2}, "RevisionError"},
		{"hosting timeout", ErrHostingTimeout, "HostingTimeoutError"},
		{"wrapped hosting timeout", fmt.Errorf("activate: %w", ErrHostingTimeout), "HostingTimeoutError"},
		{"notification", ErrNotificationExhausted, "NotificationError"},
		{"unknown", errors.New("mystery"), "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if kind := ErrorKind(tt.err); kind != tt.expected {
				t.Errorf("ErrorKind = %q, want %q", kind, tt.expected)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("provider down")
	wrapped := fmt.Errorf("pipeline: %w", &GenerationError{Cause: cause})

	var genErr *GenerationError
	if !errors.As(wrapped, &genErr) {
		t.Fatal("GenerationError should be extractable through wrapping")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}
