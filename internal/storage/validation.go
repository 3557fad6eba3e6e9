// Package storage persists the transaction ledger and the history of dedup
// runs in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must not be after end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidRun         = errors.New("invalid dedup run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidTransaction, date)
	}
	return nil
}

func validateDateRange(start, end string) error {
	for _, d := range []string{start, end} {
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDateRange, d)
		}
	}
	// YYYY-MM-DD sorts lexically.
	if start > end {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, start, end)
	}
	return nil
}

// validateTransactions validates a slice of transactions. An empty slice is
// allowed.
func validateTransactions(transactions []model.Transaction) error {
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if err := validateDate(txn.Date); err != nil {
		return err
	}
	for _, d := range []*string{txn.AuthorizedDate, txn.PostedDate} {
		if d != nil && *d != "" {
			if err := validateDate(*d); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRun(run *model.DedupRun) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if run.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidRun)
	}
	if run.Stats.Total < 0 || run.Stats.UniqueCount < 0 {
		return fmt.Errorf("%w: negative counts", ErrInvalidRun)
	}
	return nil
}
