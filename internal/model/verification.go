package model

import (
	"fmt"
	"strings"
)

// ConfidenceLevel is the verifier's coarse confidence in a judgment.
type ConfidenceLevel string

// Confidence levels, highest first.
const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ParseConfidenceLevel normalizes a verifier-supplied confidence label.
func ParseConfidenceLevel(s string) (ConfidenceLevel, error) {
	switch level := ConfidenceLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return level, nil
	default:
		return "", fmt.Errorf("unknown confidence level %q", s)
	}
}

// Score maps the level to the numeric confidence recorded on a verified
// duplicate. Low confidence is never enough to drop a transaction.
func (c ConfidenceLevel) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.95
	case ConfidenceMedium:
		return 0.85
	default:
		return 0
	}
}

// VerificationRequest is one uncertain pair as sent to a semantic verifier.
// The merchant names are the feeds' clean labels, empty when a side has none.
type VerificationRequest struct {
	ADescription  string
	BDescription  string
	AMerchantName string
	BMerchantName string
	Amount        string
	Date          string
}

// Verdict is the verifier's judgment on one VerificationRequest.
type Verdict struct {
	Confidence     ConfidenceLevel
	IsSameMerchant bool
}

// Accepted reports whether the verdict is strong enough to mark a duplicate.
func (v Verdict) Accepted() bool {
	return v.IsSameMerchant && v.Confidence.Score() > 0
}
