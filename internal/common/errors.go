// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Record errors.
	ErrInvalidRecord = errors.New("invalid record")

	// Reconciliation errors.
	ErrAlignmentExhausted = errors.New("alignment exhausted")

	// Adapter errors.
	ErrSourceUnavailable      = errors.New("source unavailable")
	ErrDestinationUnavailable = errors.New("destination unavailable")
	ErrDestinationWriteFailed = errors.New("destination write failed")

	// Run errors.
	ErrRunInProgress = errors.New("another sync run holds the lock")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
