package models

import (
	"errors"
	"fmt"
)

// Pipeline step names, reported in error payloads and ledger messages.
const (
	StepRevisionCtx  = "revision_context"
	StepGeneration   = "generation"
	StepRepository   = "repository"
	StepPublish      = "publish"
	StepHosting      = "hosting"
	StepNotification = "notification"
)

// GenerationError means every configured provider exhausted its retries or
// produced unparsable output. Fatal for the request.
type GenerationError struct {
	Cause               error
	AttemptsPerProvider map[string]int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// RepositoryError means repository creation or update failed after
// provider-level retries. Fatal for the request.
type RepositoryError struct {
	Repo  string
	Cause error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Repo, e.Cause)
}

func (e *RepositoryError) Unwrap() error { return e.Cause }

// RevisionError means a round >= 2 request referenced a prior round that
// does not exist. Caller-input problem, fatal.
type RevisionError struct {
	Task  string
	Round int
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("revision round %d for task %s has no prior round", e.Round, e.Task)
}

// ErrHostingTimeout is returned when hosting activation is not confirmed
// within the poll budget. Non-fatal: the repository is still reported as
// created, activation commonly completes after the pipeline's own budget.
var ErrHostingTimeout = errors.New("hosting activation not confirmed within poll budget")

// ErrNotificationExhausted is returned when callback delivery retries are
// exhausted. Non-fatal, recorded in the result only.
var ErrNotificationExhausted = errors.New("notification delivery retries exhausted")

// ErrorKind maps an error to its taxonomy name for result payloads.
func ErrorKind(err error) string {
	var genErr *GenerationError
	var repoErr *RepositoryError
	var revErr *RevisionError
	switch {
	case errors.As(err, &genErr):
		return "GenerationError"
	case errors.As(err, &repoErr):
		return "RepositoryError"
	case errors.As(err, &revErr):
		return "RevisionError"
	case errors.Is(err, ErrHostingTimeout):
		return "HostingTimeoutError"
	case errors.Is(err, ErrNotificationExhausted):
		return "NotificationError"
	default:
		return "InternalError"
	}
}
