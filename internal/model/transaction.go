package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date format for transaction dates.
const DateLayout = "2006-01-02"

// Source identifies where a transaction came from.
type Source string

// Known transaction sources.
const (
	SourceCSV       Source = "csv"
	SourceOFX       Source = "ofx"
	SourcePlaid     Source = "plaid"
	SourceSimpleFIN Source = "simplefin"
	SourceManual    Source = "manual"
)

// Transaction is the projection of a financial transaction that deduplication
// works on. Matching never mutates a Transaction.
type Transaction struct {
	Amount      decimal.Decimal // Signed; negative for expenses
	ID          string          // Empty for transient input that has not been stored
	Description string          // Raw merchant text
	Date        string          // YYYY-MM-DD

	// Optional fields supplied by automated feeds.
	AuthorizedDate       *string
	PostedDate           *string
	ProviderMerchantName *string

	// Carried through for storage; ignored by matching.
	AccountID string
	Source    Source
}

// AbsAmountKey returns the absolute amount formatted to two decimals.
func (t Transaction) AbsAmountKey() string {
	return t.Amount.Abs().StringFixed(2)
}

// SameAmount reports whether both transactions carry the same absolute amount
// to the cent.
func (t Transaction) SameAmount(other Transaction) bool {
	return t.AbsAmountKey() == other.AbsAmountKey()
}

// DateVariants returns the distinct known dates of the transaction: the
// primary date first, then the authorized and posted dates when present.
func (t Transaction) DateVariants() []string {
	dates := []string{t.Date}
	for _, d := range []*string{t.AuthorizedDate, t.PostedDate} {
		if d == nil || *d == "" {
			continue
		}
		seen := false
		for _, existing := range dates {
			if existing == *d {
				seen = true
				break
			}
		}
		if !seen {
			dates = append(dates, *d)
		}
	}
	return dates
}

// MerchantName returns the provider merchant name, or "" when absent.
func (t Transaction) MerchantName() string {
	if t.ProviderMerchantName == nil {
		return ""
	}
	return *t.ProviderMerchantName
}

// ParsedDate parses the primary date.
func (t Transaction) ParsedDate() (time.Time, error) {
	return time.Parse(DateLayout, t.Date)
}

// GenerateHash creates a stable fingerprint of the transaction's raw fields.
func (t Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date,
		t.Amount.StringFixed(2),
		t.Description,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DateSpan returns the earliest and latest parseable date across every date
// variant of txs, each widened by padDays. ok is false when no date parses.
func DateSpan(txs []Transaction, padDays int) (start, end string, ok bool) {
	var first, last time.Time
	for _, tx := range txs {
		for _, d := range tx.DateVariants() {
			parsed, err := time.Parse(DateLayout, d)
			if err != nil {
				continue
			}
			if !ok || parsed.Before(first) {
				first = parsed
			}
			if !ok || parsed.After(last) {
				last = parsed
			}
			ok = true
		}
	}
	if !ok {
		return "", "", false
	}
	pad := time.Duration(padDays) * 24 * time.Hour
	return first.Add(-pad).Format(DateLayout), last.Add(pad).Format(DateLayout), true
}
