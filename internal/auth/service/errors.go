package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound             = errors.New("not_found")
	ErrExpired              = errors.New("expired")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrAttemptsExceeded     = errors.New("attempts_exceeded")
	ErrAccountLocked        = errors.New("account_locked")
	ErrValidationFailed     = errors.New("validation_failed")
	ErrMethodNotEnabled     = errors.New("method_not_enabled")
	ErrMethodAlreadyEnabled = errors.New("method_already_enabled")
	ErrAlreadyCompleted     = errors.New("already_completed")
	ErrTransportFailure     = errors.New("transport_failure")
	ErrRateLimited          = errors.New("rate_limited")
	ErrSessionRevoked       = errors.New("session_revoked")
)

// LockedError reports when a locked account becomes usable again. It
// matches ErrAccountLocked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s until %s", ErrAccountLocked, e.Until.Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// PolicyError lists the password rules a candidate broke. It matches
// ErrValidationFailed.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Violations, "; "))
}

func (e *PolicyError) Is(target error) bool { return target == ErrValidationFailed }
