package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the services wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrAlreadyCompleted = errors.New("already completed")
	ErrSessionSuspended = errors.New("session suspended")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrExamExpired      = errors.New("exam expired")
	ErrExamNotPublished = errors.New("exam not published")
	ErrValidation       = errors.New("validation failed")
)

var (
	ErrExamNotFound        = fmt.Errorf("exam %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("session %w", ErrNotFound)
	ErrResultNotFound      = fmt.Errorf("result %w", ErrNotFound)
	ErrExamNotStarted      = fmt.Errorf("exam has not started yet: %w", ErrExamNotPublished)
	ErrNotEligible         = fmt.Errorf("student group is not eligible: %w", ErrNotAuthorized)
	ErrNotExamOwner        = fmt.Errorf("only the exam creator or an admin may do this: %w", ErrNotAuthorized)
	ErrSessionNotSuspended = fmt.Errorf("session is not suspended: %w", ErrValidation)
	ErrExamNotOpen         = fmt.Errorf("exam is not open: %w", ErrValidation)
	ErrInvalidToken        = fmt.Errorf("invalid token: %w", ErrNotAuthorized)
)
