package model

import (
	"fmt"
	"time"
)

// MatchTier records which tier of the pipeline accepted a duplicate.
type MatchTier int

// Match tiers.
const (
	// TierDeterministic is the string-similarity tier.
	TierDeterministic MatchTier = iota + 1
	// TierLLM is the semantic verification tier.
	TierLLM
)

// String implements fmt.Stringer.
func (t MatchTier) String() string {
	switch t {
	case TierDeterministic:
		return "deterministic"
	case TierLLM:
		return "llm"
	default:
		return fmt.Sprintf("MatchTier(%d)", int(t))
	}
}

// ParseMatchTier converts a stored tier name back into a MatchTier.
func ParseMatchTier(s string) (MatchTier, error) {
	switch s {
	case "deterministic":
		return TierDeterministic, nil
	case "llm":
		return TierLLM, nil
	default:
		return 0, fmt.Errorf("unknown match tier %q", s)
	}
}

// MatchResult pairs an incoming transaction with the existing transaction it
// duplicates.
type MatchResult struct {
	Transaction Transaction
	MatchedWith Transaction
	Confidence  float64
	Tier        MatchTier
}

// UncertainPair is a candidate pair that tier 1 could not settle. It exists
// only to be handed to the verifier.
type UncertainPair struct {
	Transaction   Transaction
	Candidate     Transaction
	NewIndex      int
	ExistingIndex int
	Score         float64
}

// DedupStats summarizes a pipeline run.
type DedupStats struct {
	Total          int
	Tier1Matches   int
	Tier2Matches   int
	UniqueCount    int
	Escalated      int // Uncertain pairs handed to the verifier
	FailedBatches  int
	ProcessingTime time.Duration
}

// ProcessingTimeMs returns the processing time in whole milliseconds.
func (s DedupStats) ProcessingTimeMs() int64 {
	return s.ProcessingTime.Milliseconds()
}

// Validate checks the partition invariants against the result sizes.
func (s DedupStats) Validate(duplicates, unique int) error {
	if s.Tier1Matches+s.Tier2Matches != duplicates {
		return fmt.Errorf("tier matches %d+%d do not equal %d duplicates",
			s.Tier1Matches, s.Tier2Matches, duplicates)
	}
	if duplicates+unique != s.Total {
		return fmt.Errorf("%d duplicates + %d unique do not equal total %d",
			duplicates, unique, s.Total)
	}
	if unique != s.UniqueCount {
		return fmt.Errorf("unique count %d does not match %d unique transactions", s.UniqueCount, unique)
	}
	return nil
}
