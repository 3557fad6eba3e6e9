package dedup

import (
	"sort"

	"github.com/Veraticus/spice-reconcile/internal/merchant"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/similarity"
)

// Default tier-1 tuning. The thresholds were tuned against observed bank and
// aggregator descriptions; change them only after re-validating on real data.
const (
	DefaultMatchThreshold        = 0.88
	DefaultTokenOverlapThreshold = 0.75
	DefaultMaxCandidatesPerTx    = 5
)

// MatchOptions holds the tier-1 thresholds.
type MatchOptions struct {
	MatchThreshold        float64
	TokenOverlapThreshold float64
}

// DefaultMatchOptions returns the default tier-1 thresholds.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		MatchThreshold:        DefaultMatchThreshold,
		TokenOverlapThreshold: DefaultTokenOverlapThreshold,
	}
}

// Tier1Decision is the outcome of comparing one pair.
type Tier1Decision struct {
	IsMatch bool
	Score   float64 // Best similarity observed; the matching score when IsMatch
}

// Tier1Result is the deterministic tier's classification of a batch.
type Tier1Result struct {
	DefiniteMatches []model.MatchResult
	UncertainPairs  []model.UncertainPair
	Unique          []model.Transaction
	// NoCandidates lists positions of new transactions that had nothing to
	// compare against.
	NoCandidates []int
	// Definite maps new-transaction positions to their definite match.
	Definite map[int]int
}

// Tier1Match decides whether newTx and existingTx describe the same purchase
// using string evidence alone. Pairs that differ in absolute amount never
// match.
func Tier1Match(newTx, existingTx model.Transaction, opts MatchOptions) Tier1Decision {
	if !newTx.SameAmount(existingTx) {
		return Tier1Decision{}
	}

	newName := merchant.ExtractMerchantName(newTx.Description)
	existingName := merchant.ExtractMerchantName(existingTx.Description)

	best := similarity.CombinedSimilarity(newName, existingName)
	if best >= opts.MatchThreshold {
		return Tier1Decision{IsMatch: true, Score: best}
	}

	newProvider := newTx.MerchantName()
	existingProvider := existingTx.MerchantName()

	if newProvider != "" {
		score := similarity.CombinedSimilarity(merchant.ExtractMerchantName(newProvider), existingName)
		best = max(best, score)
		if score >= opts.MatchThreshold {
			return Tier1Decision{IsMatch: true, Score: score}
		}
	}

	if existingProvider != "" {
		score := similarity.CombinedSimilarity(newName, merchant.ExtractMerchantName(existingProvider))
		best = max(best, score)
		if score >= opts.MatchThreshold {
			return Tier1Decision{IsMatch: true, Score: score}
		}
	}

	decision, ok := overlapMatch(newTx.Description, existingTx.Description, opts)
	if ok {
		return decision
	}
	best = max(best, decision.Score)

	type altPair struct{ a, b string }
	var alternates []altPair
	if newProvider != "" {
		alternates = append(alternates, altPair{newProvider, existingTx.Description})
	}
	if existingProvider != "" {
		alternates = append(alternates, altPair{newTx.Description, existingProvider})
	}
	if newProvider != "" && existingProvider != "" {
		alternates = append(alternates, altPair{newProvider, existingProvider})
	}
	for _, alt := range alternates {
		decision, ok = overlapMatch(alt.a, alt.b, opts)
		if ok {
			return decision
		}
		best = max(best, decision.Score)
	}

	return Tier1Decision{Score: best}
}

// overlapMatch is the relaxed fallback: significant token overlap plus a raw
// Jaro-Winkler score above the lower threshold.
func overlapMatch(a, b string, opts MatchOptions) (Tier1Decision, bool) {
	score := similarity.JaroWinkler(merchant.ExtractMerchantName(a), merchant.ExtractMerchantName(b))
	if score >= opts.TokenOverlapThreshold && similarity.HasSignificantTokenOverlap(a, b) {
		return Tier1Decision{IsMatch: true, Score: score}, true
	}
	return Tier1Decision{Score: score}, false
}

// RunTier1Dedup classifies every new transaction as a definite duplicate, a
// set of uncertain pairs for escalation, or unique. A transaction with no
// same-amount candidate inside the date window is unique and never escalated.
//
// When several candidates pass, the highest-scoring one wins; ties keep the
// first candidate in index order.
func RunTier1Dedup(newTxs, existing []model.Transaction, opts Options) Tier1Result {
	opts = opts.withDefaults()
	idx := BuildDateAmountIndex(existing)

	result := Tier1Result{Definite: make(map[int]int)}
	consumed := make(map[int]bool)

	for i, tx := range newTxs {
		candidates := idx.FindCandidates(tx, opts.DateToleranceDays)
		if opts.OneToOne {
			candidates = withoutConsumed(candidates, consumed)
		}
		if len(candidates) == 0 {
			result.Unique = append(result.Unique, tx)
			result.NoCandidates = append(result.NoCandidates, i)
			continue
		}

		bestPos, bestScore := -1, 0.0
		scored := make([]scoredCandidate, 0, len(candidates))
		for _, pos := range candidates {
			decision := Tier1Match(tx, idx.Transaction(pos), opts.Match)
			scored = append(scored, scoredCandidate{pos: pos, score: decision.Score})
			if decision.IsMatch && (bestPos < 0 || decision.Score > bestScore) {
				bestPos, bestScore = pos, decision.Score
			}
		}

		if bestPos >= 0 {
			result.DefiniteMatches = append(result.DefiniteMatches, model.MatchResult{
				Transaction: tx,
				MatchedWith: idx.Transaction(bestPos),
				Confidence:  bestScore,
				Tier:        model.TierDeterministic,
			})
			result.Definite[i] = bestPos
			consumed[bestPos] = true
			continue
		}

		sort.SliceStable(scored, func(a, b int) bool {
			return scored[a].score > scored[b].score
		})
		if len(scored) > opts.MaxCandidatesPerTx {
			scored = scored[:opts.MaxCandidatesPerTx]
		}
		for _, c := range scored {
			result.UncertainPairs = append(result.UncertainPairs, model.UncertainPair{
				Transaction:   tx,
				Candidate:     idx.Transaction(c.pos),
				NewIndex:      i,
				ExistingIndex: c.pos,
				Score:         c.score,
			})
		}
	}

	return result
}

type scoredCandidate struct {
	pos   int
	score float64
}

func withoutConsumed(candidates []int, consumed map[int]bool) []int {
	if len(consumed) == 0 {
		return candidates
	}
	kept := candidates[:0:0]
	for _, pos := range candidates {
		if !consumed[pos] {
			kept = append(kept, pos)
		}
	}
	return kept
}
