// Package dedup decides which incoming transactions are already present in a
// ledger. A deterministic tier settles clear cases from string evidence; the
// rest are escalated in batches to a semantic Verifier. Anything the run
// cannot settle is kept as unique.
package dedup

import (
	"context"
	"time"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Result is the outcome of one deduplication run.
type Result struct {
	// Unique holds the new transactions to insert, in input order.
	Unique []model.Transaction
	// Duplicates holds tier-1 matches followed by tier-2 matches, each group
	// in input order.
	Duplicates []model.MatchResult
	Stats      model.DedupStats
}

// Pipeline runs both tiers over a batch of new transactions.
type Pipeline struct {
	escalator *Escalator
	opts      Options
}

// NewPipeline creates a pipeline. A nil verifier keeps every uncertain pair
// as unique.
func NewPipeline(verifier Verifier, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		escalator: NewEscalator(verifier, opts),
		opts:      opts,
	}
}

// Run partitions newTxs into unique transactions and duplicates of existing.
// Neither input is modified.
//
// Verifier failures never fail the run. When ctx ends mid-escalation the
// unresolved pairs stay unique and Run returns the complete partial result
// together with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, newTxs, existing []model.Transaction) (Result, error) {
	start := time.Now()
	logger := p.opts.Logger

	tier1 := RunTier1Dedup(newTxs, existing, p.opts)

	logger.Debug("deterministic tier complete",
		"new", len(newTxs),
		"existing", len(existing),
		"definite", len(tier1.DefiniteMatches),
		"uncertain_pairs", len(tier1.UncertainPairs),
		"no_candidates", len(tier1.NoCandidates))

	consumed := make(map[int]bool, len(tier1.Definite))
	for _, pos := range tier1.Definite {
		consumed[pos] = true
	}

	escalation := p.escalator.Resolve(ctx, tier1.UncertainPairs, consumed)

	result := Result{
		Duplicates: make([]model.MatchResult, 0, len(tier1.DefiniteMatches)+len(escalation.Matches)),
	}
	result.Duplicates = append(result.Duplicates, tier1.DefiniteMatches...)
	result.Duplicates = append(result.Duplicates, escalation.Matches...)

	for i, tx := range newTxs {
		if _, ok := tier1.Definite[i]; ok {
			continue
		}
		if _, ok := escalation.Matched[i]; ok {
			continue
		}
		result.Unique = append(result.Unique, tx)
	}

	result.Stats = model.DedupStats{
		Total:          len(newTxs),
		Tier1Matches:   len(tier1.DefiniteMatches),
		Tier2Matches:   len(escalation.Matches),
		UniqueCount:    len(result.Unique),
		Escalated:      escalation.Escalated,
		FailedBatches:  escalation.FailedBatches,
		ProcessingTime: time.Since(start),
	}

	logger.Info("deduplication complete",
		"total", result.Stats.Total,
		"tier1_matches", result.Stats.Tier1Matches,
		"tier2_matches", result.Stats.Tier2Matches,
		"unique", result.Stats.UniqueCount,
		"escalated", result.Stats.Escalated,
		"failed_batches", result.Stats.FailedBatches,
		"duration_ms", result.Stats.ProcessingTimeMs())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Deduplicate is a one-shot helper around NewPipeline and Run.
func Deduplicate(ctx context.Context, newTxs, existing []model.Transaction, verifier Verifier, opts Options) (Result, error) {
	return NewPipeline(verifier, opts).Run(ctx, newTxs, existing)
}
