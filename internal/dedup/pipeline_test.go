package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

func testLogger() *slog.Logger {
	return common.DiscardLogger()
}

func burritoBarn() model.Transaction {
	return txn("Burrito Barn", "-22.77", "2025-01-15")
}

func amazonWebServices() model.Transaction {
	return withProvider(txn("Amazon Web Services", "-45.67", "2025-01-15"), "Amazon Web Services")
}

func requirePartition(t *testing.T, result Result, total int) {
	t.Helper()
	assert.Equal(t, total, result.Stats.Total)
	assert.Equal(t, total, len(result.Unique)+len(result.Duplicates))
	assert.Equal(t, len(result.Duplicates), result.Stats.Tier1Matches+result.Stats.Tier2Matches)
	require.NoError(t, result.Stats.Validate(len(result.Duplicates), len(result.Unique)))
}

func TestPipelineScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("wallet prefix is a deterministic duplicate", func(t *testing.T) {
		verifier := NewMockVerifier(nil)
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("AplPay BURRITO BARN 1249RIVERDALE XX", "-22.77", "2025-01-15")},
			[]model.Transaction{burritoBarn()})
		require.NoError(t, err)
		requirePartition(t, result, 1)

		require.Len(t, result.Duplicates, 1)
		assert.Equal(t, model.TierDeterministic, result.Duplicates[0].Tier)
		assert.GreaterOrEqual(t, result.Duplicates[0].Confidence, DefaultMatchThreshold)
		assert.Zero(t, verifier.CallCount())
	})

	t.Run("different merchant with identical amount stays unique", func(t *testing.T) {
		verifier := NewMockVerifier(nil)
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("Taco Town", "-22.77", "2025-01-15")},
			[]model.Transaction{burritoBarn()})
		require.NoError(t, err)
		requirePartition(t, result, 1)

		assert.Empty(t, result.Duplicates)
		require.Len(t, result.Unique, 1)
		assert.Equal(t, 1, result.Stats.Escalated)
		assert.Equal(t, 1, verifier.CallCount())
	})

	t.Run("abbreviation is resolved by escalation", func(t *testing.T) {
		verifier := NewMockVerifier(nil)
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("AWS", "-45.67", "2025-01-15")},
			[]model.Transaction{amazonWebServices()})
		require.NoError(t, err)
		requirePartition(t, result, 1)

		require.Len(t, result.Duplicates, 1)
		assert.Equal(t, model.TierLLM, result.Duplicates[0].Tier)
		assert.InDelta(t, 0.95, result.Duplicates[0].Confidence, 1e-9)
		assert.Equal(t, 0, result.Stats.Tier1Matches)
		assert.Equal(t, 1, result.Stats.Tier2Matches)

		calls := verifier.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, model.VerificationRequest{
			ADescription:  "AWS",
			BDescription:  "Amazon Web Services",
			BMerchantName: "Amazon Web Services",
			Amount:        "45.67",
			Date:          "2025-01-15",
		}, calls[0][0])
	})

	t.Run("provider merchant names reach the verifier", func(t *testing.T) {
		verifier := NewMockVerifier(nil)
		existing := withProvider(txn("CHK 4411", "-45.67", "2025-01-15"), "Amazon Web Services")
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("AWS", "-45.67", "2025-01-15")},
			[]model.Transaction{existing})
		require.NoError(t, err)
		requirePartition(t, result, 1)

		require.Len(t, result.Duplicates, 1)
		assert.Equal(t, model.TierLLM, result.Duplicates[0].Tier)

		calls := verifier.Calls()
		require.Len(t, calls, 1)
		assert.Empty(t, calls[0][0].AMerchantName)
		assert.Equal(t, "Amazon Web Services", calls[0][0].BMerchantName)
	})

	t.Run("exact normalized equality", func(t *testing.T) {
		result, err := NewPipeline(NewMockVerifier(nil), Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("RIDESHARE", "-28.98", "2025-01-09")},
			[]model.Transaction{withProvider(txn("Rideshare", "-28.98", "2025-01-09"), "Rideshare")})
		require.NoError(t, err)
		require.Len(t, result.Duplicates, 1)
		assert.Equal(t, model.TierDeterministic, result.Duplicates[0].Tier)
	})

	t.Run("unseen amount does no work", func(t *testing.T) {
		verifier := NewMockVerifier(nil)
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("Hardware Depot", "-301.10", "2025-01-15")},
			[]model.Transaction{burritoBarn(), amazonWebServices()})
		require.NoError(t, err)
		requirePartition(t, result, 1)

		assert.Len(t, result.Unique, 1)
		assert.Zero(t, result.Stats.Escalated)
		assert.Zero(t, verifier.CallCount())
	})

	t.Run("cross amount charges stay distinct", func(t *testing.T) {
		result, err := NewPipeline(NewMockVerifier(nil), Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("Cloud CDN", "-14.20", "2025-01-15")},
			[]model.Transaction{txn("Cloud CDN", "-10.46", "2025-01-15")})
		require.NoError(t, err)
		assert.Empty(t, result.Duplicates)
		assert.Len(t, result.Unique, 1)
	})

	t.Run("a month apart is never compared", func(t *testing.T) {
		verifier := NewMockVerifier(nil)
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx,
			[]model.Transaction{txn("Music Stream", "-10.99", "2025-02-16")},
			[]model.Transaction{txn("Music Stream", "-10.99", "2025-01-16")})
		require.NoError(t, err)
		assert.Empty(t, result.Duplicates)
		assert.Zero(t, verifier.CallCount())
	})
}

func mixedBatch() (newTxs, existing []model.Transaction) {
	existing = []model.Transaction{burritoBarn(), amazonWebServices()}
	newTxs = []model.Transaction{
		txn("AplPay BURRITO BARN 1249RIVERDALE XX", "-22.77", "2025-01-15"),
		txn("AWS", "-45.67", "2025-01-15"),
		txn("Taco Town", "-22.77", "2025-01-15"),
		txn("Hardware Depot", "-301.10", "2025-01-15"),
	}
	return newTxs, existing
}

func TestPipelineFailSafe(t *testing.T) {
	ctx := context.Background()
	newTxs, existing := mixedBatch()

	verifiers := map[string]Verifier{
		"nil verifier": nil,
		"verifier error": VerifierFunc(func(context.Context, []model.VerificationRequest) ([]model.Verdict, error) {
			return nil, errors.New("upstream 503")
		}),
		"too few verdicts": VerifierFunc(func(context.Context, []model.VerificationRequest) ([]model.Verdict, error) {
			return []model.Verdict{{IsSameMerchant: true, Confidence: model.ConfidenceHigh}}, nil
		}),
		"panicking verifier": VerifierFunc(func(context.Context, []model.VerificationRequest) ([]model.Verdict, error) {
			panic("boom")
		}),
	}

	for name, verifier := range verifiers {
		t.Run(name, func(t *testing.T) {
			result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx, newTxs, existing)
			require.NoError(t, err)
			requirePartition(t, result, len(newTxs))

			assert.Zero(t, result.Stats.Tier2Matches)
			assert.Equal(t, result.Stats.Tier1Matches, len(result.Duplicates))
			assert.Equal(t, 1, result.Stats.Tier1Matches)
			assert.Len(t, result.Unique, 3)
			assert.Equal(t, 1, result.Stats.FailedBatches)
		})
	}
}

func TestPipelineLowConfidenceRejected(t *testing.T) {
	verifier := VerifierFunc(func(_ context.Context, reqs []model.VerificationRequest) ([]model.Verdict, error) {
		verdicts := make([]model.Verdict, len(reqs))
		for i := range verdicts {
			verdicts[i] = model.Verdict{IsSameMerchant: true, Confidence: model.ConfidenceLow}
		}
		return verdicts, nil
	})

	result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(context.Background(),
		[]model.Transaction{txn("AWS", "-45.67", "2025-01-15")},
		[]model.Transaction{amazonWebServices()})
	require.NoError(t, err)
	assert.Empty(t, result.Duplicates)
	assert.Zero(t, result.Stats.FailedBatches)
}

func TestPipelineMediumConfidence(t *testing.T) {
	verifier := VerifierFunc(func(_ context.Context, reqs []model.VerificationRequest) ([]model.Verdict, error) {
		verdicts := make([]model.Verdict, len(reqs))
		for i := range verdicts {
			verdicts[i] = model.Verdict{IsSameMerchant: true, Confidence: model.ConfidenceMedium}
		}
		return verdicts, nil
	})

	result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(context.Background(),
		[]model.Transaction{txn("AWS", "-45.67", "2025-01-15")},
		[]model.Transaction{amazonWebServices()})
	require.NoError(t, err)
	require.Len(t, result.Duplicates, 1)
	assert.InDelta(t, 0.85, result.Duplicates[0].Confidence, 1e-9)
}

func TestPipelinePartialBatchFailure(t *testing.T) {
	existing := []model.Transaction{
		amazonWebServices(),
		withProvider(txn("Amazon Web Services", "-80.00", "2025-01-20"), "Amazon Web Services"),
	}
	newTxs := []model.Transaction{
		txn("AWS", "-45.67", "2025-01-15"),
		txn("AWS", "-80.00", "2025-01-20"),
	}

	verifier := NewMockVerifier(nil)
	verifier.FailCalls = map[int]bool{1: true}

	result, err := NewPipeline(verifier, Options{
		Logger:               testLogger(),
		BatchSize:            1,
		MaxConcurrentBatches: 1,
	}).Run(context.Background(), newTxs, existing)
	require.NoError(t, err)
	requirePartition(t, result, 2)

	assert.Equal(t, 1, result.Stats.FailedBatches)
	assert.Equal(t, 2, result.Stats.Escalated)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "2025-01-20", result.Duplicates[0].Transaction.Date)
	require.Len(t, result.Unique, 1)
	assert.Equal(t, "2025-01-15", result.Unique[0].Date)
}

func TestPipelineAtMostOneVerifiedMatch(t *testing.T) {
	first := amazonWebServices()
	first.ID = "first"
	second := amazonWebServices()
	second.ID = "second"
	second.Description = "AMAZON WEB SERVICES AWS.AMAZON.CO"

	result, err := NewPipeline(NewMockVerifier(nil), Options{Logger: testLogger()}).Run(context.Background(),
		[]model.Transaction{txn("AWS", "-45.67", "2025-01-15")},
		[]model.Transaction{first, second})
	require.NoError(t, err)
	requirePartition(t, result, 1)
	assert.Len(t, result.Duplicates, 1)
}

func TestPipelineOneToOneAcrossTiers(t *testing.T) {
	existing := []model.Transaction{amazonWebServices()}
	newTxs := []model.Transaction{
		txn("AWS", "-45.67", "2025-01-15"),
		txn("AWS", "-45.67", "2025-01-15"),
	}

	loose, err := NewPipeline(NewMockVerifier(nil), Options{Logger: testLogger()}).Run(context.Background(), newTxs, existing)
	require.NoError(t, err)
	assert.Len(t, loose.Duplicates, 2)

	strict, err := NewPipeline(NewMockVerifier(nil), Options{Logger: testLogger(), OneToOne: true}).Run(context.Background(), newTxs, existing)
	require.NoError(t, err)
	requirePartition(t, strict, 2)
	require.Len(t, strict.Duplicates, 1)
	assert.Len(t, strict.Unique, 1)
}

func TestPipelineCancellation(t *testing.T) {
	newTxs, existing := mixedBatch()

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		verifier := NewMockVerifier(nil)
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx, newTxs, existing)
		require.ErrorIs(t, err, context.Canceled)
		requirePartition(t, result, len(newTxs))

		assert.Equal(t, 1, result.Stats.Tier1Matches)
		assert.Zero(t, result.Stats.Tier2Matches)
		assert.Zero(t, verifier.CallCount())
	})

	t.Run("deadline during verification", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		block := make(chan struct{})
		defer close(block)
		verifier := VerifierFunc(func(context.Context, []model.VerificationRequest) ([]model.Verdict, error) {
			<-block
			return nil, nil
		})

		start := time.Now()
		result, err := NewPipeline(verifier, Options{Logger: testLogger()}).Run(ctx, newTxs, existing)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
		requirePartition(t, result, len(newTxs))
		assert.Zero(t, result.Stats.Tier2Matches)
		assert.Equal(t, 1, result.Stats.FailedBatches)
	})
}

func TestPipelineBatchingAndConcurrency(t *testing.T) {
	var existing, newTxs []model.Transaction
	for i := range 12 {
		amount := fmt.Sprintf("-%d.00", 100+i)
		existing = append(existing, withProvider(txn("Amazon Web Services", amount, "2025-03-01"), "Amazon Web Services"))
		newTxs = append(newTxs, txn("AWS", amount, "2025-03-01"))
	}

	var inFlight, peak atomic.Int32
	mock := NewMockVerifier(nil)
	verifier := VerifierFunc(func(ctx context.Context, reqs []model.VerificationRequest) ([]model.Verdict, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return mock.VerifyBatch(ctx, reqs)
	})

	var mu sync.Mutex
	var progress []int
	opts := Options{
		Logger:               testLogger(),
		BatchSize:            5,
		MaxConcurrentBatches: 2,
		OnBatchDone: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			progress = append(progress, done)
		},
	}

	result, err := NewPipeline(verifier, opts).Run(context.Background(), newTxs, existing)
	require.NoError(t, err)
	requirePartition(t, result, 12)

	assert.Equal(t, 12, result.Stats.Tier2Matches)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 3, mock.CallCount())
	assert.ElementsMatch(t, []int{1, 2, 3}, progress)

	for i := range result.Duplicates {
		assert.True(t, newTxs[i].Amount.Equal(result.Duplicates[i].Transaction.Amount))
	}
}

func TestPipelineDoesNotMutateInputs(t *testing.T) {
	newTxs, existing := mixedBatch()
	newCopy := append([]model.Transaction(nil), newTxs...)
	existingCopy := append([]model.Transaction(nil), existing...)

	first, err := Deduplicate(context.Background(), newTxs, existing, NewMockVerifier(nil), Options{Logger: testLogger()})
	require.NoError(t, err)
	second, err := Deduplicate(context.Background(), newTxs, existing, NewMockVerifier(nil), Options{Logger: testLogger()})
	require.NoError(t, err)

	assert.Equal(t, newCopy, newTxs)
	assert.Equal(t, existingCopy, existing)

	first.Stats.ProcessingTime, second.Stats.ProcessingTime = 0, 0
	assert.Equal(t, first, second)
}

func TestPipelineUniqueKeepsInputOrder(t *testing.T) {
	newTxs, existing := mixedBatch()
	result, err := NewPipeline(NewMockVerifier(nil), Options{Logger: testLogger()}).Run(context.Background(), newTxs, existing)
	require.NoError(t, err)

	var got []string
	for _, tx := range result.Unique {
		got = append(got, tx.Description)
	}
	assert.Equal(t, []string{"Taco Town", "Hardware Depot"}, got)

	require.Len(t, result.Duplicates, 2)
	assert.Equal(t, model.TierDeterministic, result.Duplicates[0].Tier)
	assert.Equal(t, model.TierLLM, result.Duplicates[1].Tier)
}
