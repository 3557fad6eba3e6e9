package model

import (
	"fmt"
	"time"
)

// ReviewStatus tracks what the user decided about a recorded duplicate.
type ReviewStatus string

// Review statuses.
const (
	ReviewPending   ReviewStatus = "pending"
	ReviewConfirmed ReviewStatus = "confirmed"
	ReviewRestored  ReviewStatus = "restored"
)

// ParseReviewStatus validates a stored review status.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch status := ReviewStatus(s); status {
	case ReviewPending, ReviewConfirmed, ReviewRestored:
		return status, nil
	default:
		return "", fmt.Errorf("unknown review status %q", s)
	}
}

// DedupRun records one import's deduplication outcome.
type DedupRun struct {
	CreatedAt time.Time
	ID        string
	Source    Source
	Label     string // File name, institution or other import origin
	Stats     DedupStats
}

// DuplicateRecord is a stored duplicate decision. Transaction is the dropped
// incoming transaction; MatchedID names the ledger row it matched.
type DuplicateRecord struct {
	ReviewedAt         *time.Time
	ID                 string
	RunID              string
	MatchedID          string
	MatchedDescription string
	Status             ReviewStatus
	Transaction        Transaction
	Confidence         float64
	Tier               MatchTier
}
