package dedup

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-reconcile/internal/merchant"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/similarity"
)

func txn(desc, amount, date string) model.Transaction {
	return model.Transaction{
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
	}
}

func withProvider(tx model.Transaction, name string) model.Transaction {
	tx.ProviderMerchantName = model.StringPtr(name)
	return tx
}

func TestTier1Match(t *testing.T) {
	opts := DefaultMatchOptions()

	tests := []struct {
		name      string
		newTx     model.Transaction
		existing  model.Transaction
		wantMatch bool
		minScore  float64
	}{
		{
			name:      "wallet prefix and store noise",
			newTx:     txn("AplPay BURRITO BARN 1249RIVERDALE XX", "-22.77", "2025-01-15"),
			existing:  txn("Burrito Barn", "-22.77", "2025-01-15"),
			wantMatch: true,
			minScore:  DefaultMatchThreshold,
		},
		{
			name:      "exact normalized equality",
			newTx:     txn("RIDESHARE", "-28.98", "2025-01-09"),
			existing:  withProvider(txn("Rideshare", "-28.98", "2025-01-09"), "Rideshare"),
			wantMatch: true,
			minScore:  1.0,
		},
		{
			name:      "different merchant same amount",
			newTx:     txn("Taco Town", "-22.77", "2025-01-15"),
			existing:  txn("Burrito Barn", "-22.77", "2025-01-15"),
			wantMatch: false,
		},
		{
			name:      "abbreviation is not settled deterministically",
			newTx:     txn("AWS", "-45.67", "2025-01-15"),
			existing:  withProvider(txn("Amazon Web Services", "-45.67", "2025-01-15"), "Amazon Web Services"),
			wantMatch: false,
		},
		{
			name:      "provider name on the new side",
			newTx:     withProvider(txn("ZQX 99812", "-9.50", "2025-03-02"), "Corner Bakery"),
			existing:  txn("Corner Bakery", "-9.50", "2025-03-02"),
			wantMatch: true,
			minScore:  DefaultMatchThreshold,
		},
		{
			name:      "provider name on the existing side",
			newTx:     txn("Corner Bakery", "-9.50", "2025-03-02"),
			existing:  withProvider(txn("ZQX 99812", "-9.50", "2025-03-02"), "Corner Bakery"),
			wantMatch: true,
			minScore:  DefaultMatchThreshold,
		},
		{
			name:      "sign does not matter",
			newTx:     txn("Burrito Barn", "22.77", "2025-01-15"),
			existing:  txn("Burrito Barn", "-22.77", "2025-01-15"),
			wantMatch: true,
			minScore:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tier1Match(tt.newTx, tt.existing, opts)
			assert.Equal(t, tt.wantMatch, got.IsMatch, "score %.3f", got.Score)
			if tt.wantMatch {
				assert.GreaterOrEqual(t, got.Score, tt.minScore)
			}
		})
	}
}

func TestTier1MatchOverlapFallback(t *testing.T) {
	opts := DefaultMatchOptions()
	const extra, roasters = "BLUE BOTTLE COFFEE OAKLAND", "BLUE BOTTLE ROASTERS"

	combined := similarity.CombinedSimilarity(merchant.ExtractMerchantName(extra), merchant.ExtractMerchantName(roasters))
	require.Less(t, combined, DefaultMatchThreshold, "pair must fall through to the overlap fallback")

	t.Run("descriptions", func(t *testing.T) {
		got := Tier1Match(txn(extra, "-6.25", "2025-03-04"), txn(roasters, "-6.25", "2025-03-04"), opts)
		assert.True(t, got.IsMatch)
		assert.InDelta(t, 0.852, got.Score, 0.01)
		assert.Less(t, got.Score, DefaultMatchThreshold)
	})

	t.Run("provider name on the new side", func(t *testing.T) {
		newTx := withProvider(txn("ZQX 99812", "-6.25", "2025-03-04"), extra)
		got := Tier1Match(newTx, txn(roasters, "-6.25", "2025-03-04"), opts)
		assert.True(t, got.IsMatch)
		assert.InDelta(t, 0.852, got.Score, 0.01)
	})

	t.Run("provider name on the existing side", func(t *testing.T) {
		existing := withProvider(txn("ZQX 99812", "-6.25", "2025-03-04"), roasters)
		got := Tier1Match(txn(extra, "-6.25", "2025-03-04"), existing, opts)
		assert.True(t, got.IsMatch)
	})

	t.Run("shared tokens without enough character similarity", func(t *testing.T) {
		require.True(t, similarity.HasSignificantTokenOverlap("COFFEE JOES", "JOES COFFEE"))
		got := Tier1Match(txn("COFFEE JOES", "-4.00", "2025-03-04"), txn("JOES COFFEE", "-4.00", "2025-03-04"), opts)
		assert.False(t, got.IsMatch, "score %.3f", got.Score)
		assert.Less(t, got.Score, DefaultTokenOverlapThreshold)
	})
}

func TestTier1MatchNeverCrossesAmounts(t *testing.T) {
	opts := DefaultMatchOptions()
	descriptions := []string{"Cloud CDN", "CLOUD CDN", "Burrito Barn", "RIDESHARE"}

	for _, desc := range descriptions {
		t.Run(desc, func(t *testing.T) {
			got := Tier1Match(txn(desc, "-10.46", "2025-01-15"), txn(desc, "-14.20", "2025-01-15"), opts)
			assert.False(t, got.IsMatch)
			assert.Zero(t, got.Score)
		})
	}

	t.Run("one cent apart", func(t *testing.T) {
		got := Tier1Match(txn("Cloud CDN", "-10.46", "2025-01-15"), txn("Cloud CDN", "-10.47", "2025-01-15"), opts)
		assert.False(t, got.IsMatch)
	})
}

func TestRunTier1Dedup(t *testing.T) {
	t.Run("classifies definite uncertain and unique", func(t *testing.T) {
		existing := []model.Transaction{
			txn("Burrito Barn", "-22.77", "2025-01-15"),
			withProvider(txn("Amazon Web Services", "-45.67", "2025-01-15"), "Amazon Web Services"),
		}
		newTxs := []model.Transaction{
			txn("AplPay BURRITO BARN 1249RIVERDALE XX", "-22.77", "2025-01-15"),
			txn("AWS", "-45.67", "2025-01-15"),
			txn("Hardware Depot", "-301.10", "2025-01-15"),
		}

		result := RunTier1Dedup(newTxs, existing, Options{Logger: testLogger()})

		require.Len(t, result.DefiniteMatches, 1)
		assert.Equal(t, model.TierDeterministic, result.DefiniteMatches[0].Tier)
		assert.Equal(t, 0, result.Definite[0])

		require.Len(t, result.UncertainPairs, 1)
		assert.Equal(t, 1, result.UncertainPairs[0].NewIndex)
		assert.Equal(t, 1, result.UncertainPairs[0].ExistingIndex)

		require.Len(t, result.Unique, 1)
		assert.Equal(t, "Hardware Depot", result.Unique[0].Description)
		assert.Equal(t, []int{2}, result.NoCandidates)
	})

	t.Run("picks the best scoring definite match", func(t *testing.T) {
		existing := []model.Transaction{
			txn("BURRITO BARN RIVERDALE", "-22.77", "2025-01-15"),
			txn("Burrito Barn", "-22.77", "2025-01-15"),
		}
		result := RunTier1Dedup([]model.Transaction{txn("BURRITO BARN", "-22.77", "2025-01-15")}, existing, Options{Logger: testLogger()})

		require.Len(t, result.DefiniteMatches, 1)
		assert.Equal(t, 1, result.Definite[0])
		assert.InDelta(t, 1.0, result.DefiniteMatches[0].Confidence, 1e-9)
	})

	t.Run("caps uncertain pairs per transaction", func(t *testing.T) {
		var existing []model.Transaction
		for _, name := range []string{"ALPHA", "BRAVO", "CHARLIE", "DELTA", "ECHO", "FOXTROT", "GOLF"} {
			existing = append(existing, txn(name, "-5.00", "2025-02-01"))
		}
		result := RunTier1Dedup([]model.Transaction{txn("QUUX", "-5.00", "2025-02-01")}, existing, Options{Logger: testLogger()})

		require.Len(t, result.UncertainPairs, DefaultMaxCandidatesPerTx)
		for i := 1; i < len(result.UncertainPairs); i++ {
			assert.GreaterOrEqual(t, result.UncertainPairs[i-1].Score, result.UncertainPairs[i].Score)
		}
		assert.Empty(t, result.Unique)
	})

	t.Run("one to one leaves the second copy unmatched", func(t *testing.T) {
		existing := []model.Transaction{txn("Burrito Barn", "-22.77", "2025-01-15")}
		newTxs := []model.Transaction{
			txn("Burrito Barn", "-22.77", "2025-01-15"),
			txn("Burrito Barn", "-22.77", "2025-01-15"),
		}

		loose := RunTier1Dedup(newTxs, existing, Options{Logger: testLogger()})
		assert.Len(t, loose.DefiniteMatches, 2)

		strict := RunTier1Dedup(newTxs, existing, Options{Logger: testLogger(), OneToOne: true})
		assert.Len(t, strict.DefiniteMatches, 1)
		assert.Len(t, strict.Unique, 1)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		var existing, newTxs []model.Transaction
		for i := range 20 {
			existing = append(existing, txn(fmt.Sprintf("MERCHANT %d", i), "-12.00", "2025-04-10"))
			newTxs = append(newTxs, txn(fmt.Sprintf("merchant %d", i), "-12.00", "2025-04-11"))
		}
		first := RunTier1Dedup(newTxs, existing, Options{Logger: testLogger()})
		second := RunTier1Dedup(newTxs, existing, Options{Logger: testLogger()})
		assert.Equal(t, first, second)
	})
}
