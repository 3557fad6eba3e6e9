package dedup

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// EscalationResult is what the semantic tier resolved.
type EscalationResult struct {
	// Matches holds at most one verified duplicate per new transaction,
	// ordered by the new transaction's position.
	Matches []model.MatchResult
	// Matched maps new-transaction positions to the existing position they
	// were verified against.
	Matched       map[int]int
	Escalated     int
	FailedBatches int
}

// Escalator resolves uncertain pairs with a Verifier.
type Escalator struct {
	verifier Verifier
	opts     Options
}

// NewEscalator creates an Escalator. A nil verifier resolves nothing.
func NewEscalator(verifier Verifier, opts Options) *Escalator {
	return &Escalator{verifier: verifier, opts: opts.withDefaults()}
}

// Resolve is EscalateUncertain with the escalator's verifier and options.
func (e *Escalator) Resolve(ctx context.Context, pairs []model.UncertainPair, consumed map[int]bool) EscalationResult {
	return EscalateUncertain(ctx, e.verifier, pairs, consumed, e.opts)
}

type batchOutcome struct {
	verdicts []model.Verdict
	ok       bool
}

// EscalateUncertain sends uncertain pairs to the verifier in batches of
// opts.BatchSize with at most opts.MaxConcurrentBatches in flight. A batch
// whose call fails, returns the wrong number of verdicts, or is abandoned
// because ctx ended resolves none of its pairs. Pairs never resolved as
// duplicates stay unique.
//
// consumed lists existing positions already claimed earlier in the run; it is
// only consulted when opts.OneToOne is set.
func EscalateUncertain(ctx context.Context, verifier Verifier, pairs []model.UncertainPair, consumed map[int]bool, opts Options) EscalationResult {
	opts = opts.withDefaults()
	result := EscalationResult{Matched: make(map[int]int)}
	if len(pairs) == 0 {
		return result
	}
	result.Escalated = len(pairs)

	batches := chunkPairs(pairs, opts.BatchSize)
	if verifier == nil {
		opts.Logger.Warn("no verifier configured; uncertain pairs kept as unique",
			"pairs", len(pairs),
			"batches", len(batches))
		result.FailedBatches = len(batches)
		return result
	}

	outcomes := make([]batchOutcome, len(batches))
	var done atomic.Int64
	report := func() {
		if opts.OnBatchDone != nil {
			opts.OnBatchDone(int(done.Add(1)), len(batches))
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(opts.MaxConcurrentBatches)
	for i, batch := range batches {
		if ctx.Err() != nil {
			report()
			continue
		}
		g.Go(func() error {
			defer report()
			if ctx.Err() != nil {
				return nil
			}
			verdicts, err := verifyBatch(ctx, verifier, batch)
			if err != nil {
				opts.Logger.Warn("verification batch failed; pairs kept as unique",
					"batch", i,
					"pairs", len(batch),
					"error", err)
				return nil
			}
			outcomes[i] = batchOutcome{verdicts: verdicts, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	// Fold verdicts back onto pairs in their original order.
	accepted := make(map[int][]verifiedPair)
	offset := 0
	for i, batch := range batches {
		if !outcomes[i].ok {
			result.FailedBatches++
			offset += len(batch)
			continue
		}
		for j, verdict := range outcomes[i].verdicts {
			if !verdict.Accepted() {
				continue
			}
			pair := batch[j]
			accepted[pair.NewIndex] = append(accepted[pair.NewIndex], verifiedPair{
				pair:       pair,
				confidence: verdict.Confidence.Score(),
				order:      offset + j,
			})
		}
		offset += len(batch)
	}

	newPositions := make([]int, 0, len(accepted))
	for pos := range accepted {
		newPositions = append(newPositions, pos)
	}
	sort.Ints(newPositions)

	for _, pos := range newPositions {
		choices := accepted[pos]
		sort.SliceStable(choices, func(a, b int) bool {
			if choices[a].confidence != choices[b].confidence {
				return choices[a].confidence > choices[b].confidence
			}
			if choices[a].pair.Score != choices[b].pair.Score {
				return choices[a].pair.Score > choices[b].pair.Score
			}
			return choices[a].order < choices[b].order
		})
		for _, choice := range choices {
			if opts.OneToOne && consumed[choice.pair.ExistingIndex] {
				continue
			}
			result.Matches = append(result.Matches, model.MatchResult{
				Transaction: choice.pair.Transaction,
				MatchedWith: choice.pair.Candidate,
				Confidence:  choice.confidence,
				Tier:        model.TierLLM,
			})
			result.Matched[pos] = choice.pair.ExistingIndex
			if opts.OneToOne {
				consumed[choice.pair.ExistingIndex] = true
			}
			break
		}
	}

	return result
}

type verifiedPair struct {
	pair       model.UncertainPair
	confidence float64
	order      int
}

// verifyBatch runs one verifier call. It returns as soon as ctx ends even if
// the verifier does not, and treats a panic in the verifier as a failure.
func verifyBatch(ctx context.Context, verifier Verifier, batch []model.UncertainPair) ([]model.Verdict, error) {
	requests := make([]model.VerificationRequest, len(batch))
	for i, pair := range batch {
		requests[i] = NewVerificationRequest(pair)
	}

	type reply struct {
		verdicts []model.Verdict
		err      error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("verifier panic: %v", r)}
			}
		}()
		verdicts, err := verifier.VerifyBatch(ctx, requests)
		ch <- reply{verdicts: verdicts, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrVerifierUnavailable, r.err)
		}
		if len(r.verdicts) != len(requests) {
			return nil, fmt.Errorf("%w: got %d verdicts for %d pairs",
				common.ErrMalformedVerdict, len(r.verdicts), len(requests))
		}
		return r.verdicts, nil
	}
}

// NewVerificationRequest builds the verifier payload for an uncertain pair.
// The incoming transaction supplies the amount and date; provider merchant
// names ride along as hints.
func NewVerificationRequest(pair model.UncertainPair) model.VerificationRequest {
	return model.VerificationRequest{
		ADescription:  pair.Transaction.Description,
		BDescription:  pair.Candidate.Description,
		AMerchantName: pair.Transaction.MerchantName(),
		BMerchantName: pair.Candidate.MerchantName(),
		Amount:        pair.Transaction.Amount.Abs().StringFixed(2),
		Date:          pair.Transaction.Date,
	}
}

func chunkPairs(pairs []model.UncertainPair, size int) [][]model.UncertainPair {
	var batches [][]model.UncertainPair
	for start := 0; start < len(pairs); start += size {
		end := min(start+size, len(pairs))
		batches = append(batches, pairs[start:end])
	}
	return batches
}
