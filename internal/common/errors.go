// Package common holds the errors, retry policy and logger setup shared by
// the importers, the deduplication pipeline and the CLI.
package common

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrPlaidConnection is a non-retryable Plaid API failure.
	ErrPlaidConnection = errors.New("plaid connection failed")
	ErrPlaidRateLimit  = errors.New("plaid rate limit exceeded")

	ErrNoTransactions = errors.New("no transactions to import")
	ErrMalformedInput = errors.New("malformed input")

	// ErrVerifierUnavailable means an escalation batch could not be judged.
	// Its pairs are left unique.
	ErrVerifierUnavailable = errors.New("verifier unavailable")
	ErrMalformedVerdict    = errors.New("malformed verdict")

	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message meant for the terminal alongside the cause.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with a message for the user.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// timeouts and anything explicitly marked retryable. Cancellation never is.
func IsRetryable(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrRateLimit), errors.Is(err, ErrPlaidRateLimit), errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var retryable *RetryableError
	return errors.As(err, &retryable) && retryable.Retryable
}
