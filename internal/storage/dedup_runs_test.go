package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

func seedLedger(t *testing.T, store *SQLiteStorage) model.Transaction {
	t.Helper()
	inserted, err := store.SaveTransactions(context.Background(), []model.Transaction{{
		Date:        "2025-01-15",
		Description: "Burrito Barn",
		Amount:      decimal.RequireFromString("-22.77"),
		Source:      model.SourcePlaid,
	}})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	return inserted[0]
}

func testImport(existing model.Transaction) (*model.DedupRun, []model.Transaction, []model.MatchResult) {
	dropped := model.Transaction{
		Date:        "2025-01-15",
		Description: "AplPay BURRITO BARN 1249RIVERDALE XX",
		Amount:      decimal.RequireFromString("-22.77"),
		AccountID:   "card",
	}
	unique := []model.Transaction{{
		Date:        "2025-01-16",
		Description: "Hardware Depot",
		Amount:      decimal.RequireFromString("-301.10"),
		AccountID:   "card",
		Source:      model.SourceCSV,
	}}
	duplicates := []model.MatchResult{{
		Transaction: dropped,
		MatchedWith: existing,
		Confidence:  0.94,
		Tier:        model.TierDeterministic,
	}}
	run := &model.DedupRun{
		Source: model.SourceCSV,
		Label:  "statement.csv",
		Stats: model.DedupStats{
			Total:          2,
			Tier1Matches:   1,
			UniqueCount:    1,
			ProcessingTime: 1500 * time.Millisecond,
		},
	}
	return run, unique, duplicates
}

func TestCommitImport(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	existing := seedLedger(t, store)
	run, unique, duplicates := testImport(existing)

	inserted, err := store.CommitImport(ctx, run, unique, duplicates)
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	count, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "duplicates never reach the ledger")

	stored, err := store.GetDedupRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "statement.csv", stored.Label)
	assert.Equal(t, run.Stats.Tier1Matches, stored.Stats.Tier1Matches)
	assert.Equal(t, 1500*time.Millisecond, stored.Stats.ProcessingTime)

	records, err := store.GetDuplicates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, existing.ID, record.MatchedID)
	assert.Equal(t, "Burrito Barn", record.MatchedDescription)
	assert.Equal(t, model.TierDeterministic, record.Tier)
	assert.Equal(t, model.ReviewPending, record.Status)
	assert.Equal(t, model.SourceCSV, record.Transaction.Source, "source falls back to the run's")
	assert.Nil(t, record.ReviewedAt)
}

func TestCommitImportKeepsIdenticalUniqueRows(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	coffee := model.Transaction{
		Date:        "2025-02-03",
		Description: "BLUE BOTTLE COFFEE",
		Amount:      decimal.RequireFromString("-5.50"),
		AccountID:   "card",
		Source:      model.SourceCSV,
	}
	run := &model.DedupRun{
		Source: model.SourceCSV,
		Label:  "coffee.csv",
		Stats:  model.DedupStats{Total: 2, UniqueCount: 2},
	}

	inserted, err := store.CommitImport(ctx, run, []model.Transaction{coffee, coffee}, nil)
	require.NoError(t, err)
	assert.Len(t, inserted, 2)

	stored, err := store.GetTransactionsInRange(ctx, "2025-02-03", "2025-02-03")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCommitImportIsAtomic(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	existing := seedLedger(t, store)
	run, unique, duplicates := testImport(existing)
	_, err := store.CommitImport(ctx, run, unique, duplicates)
	require.NoError(t, err)

	// Reusing the run ID fails the run insert after the ledger insert.
	second, more, _ := testImport(existing)
	second.ID = run.ID
	more[0].Description = "Garden Center"
	_, err = store.CommitImport(ctx, second, more, nil)
	require.Error(t, err)

	count, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "failed commit leaves the ledger untouched")
}

func TestListDedupRuns(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	for i, label := range []string{"jan.ofx", "feb.ofx", "mar.ofx"} {
		run := &model.DedupRun{
			Source:    model.SourceOFX,
			Label:     label,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.SaveDedupRun(ctx, run, nil))
	}

	runs, err := store.ListDedupRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "mar.ofx", runs[0].Label)
	assert.Equal(t, "feb.ofx", runs[1].Label)

	all, err := store.ListDedupRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = store.GetDedupRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.SaveDedupRun(ctx, &model.DedupRun{}, nil), ErrInvalidRun)
}

func TestReviewDuplicates(t *testing.T) {
	setup := func(t *testing.T) (*SQLiteStorage, model.DuplicateRecord) {
		t.Helper()
		store, cleanup := createTestStorage(t)
		t.Cleanup(cleanup)
		run, unique, duplicates := testImport(seedLedger(t, store))
		_, err := store.CommitImport(context.Background(), run, unique, duplicates)
		require.NoError(t, err)
		pending, err := store.GetPendingDuplicates(context.Background())
		require.NoError(t, err)
		require.Len(t, pending, 1)
		return store, pending[0]
	}

	t.Run("confirm", func(t *testing.T) {
		store, record := setup(t)
		ctx := context.Background()

		require.NoError(t, store.ConfirmDuplicate(ctx, record.ID))
		assert.ErrorIs(t, store.ConfirmDuplicate(ctx, record.ID), ErrAlreadyReviewed)

		pending, err := store.GetPendingDuplicates(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)

		records, err := store.GetDuplicates(ctx, record.RunID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewConfirmed, records[0].Status)
		assert.NotNil(t, records[0].ReviewedAt)
	})

	t.Run("restore inserts into the ledger", func(t *testing.T) {
		store, record := setup(t)
		ctx := context.Background()

		restored, err := store.RestoreDuplicate(ctx, record.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, restored.ID)
		assert.Equal(t, record.Transaction.Description, restored.Description)

		count, err := store.CountTransactions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		_, err = store.RestoreDuplicate(ctx, record.ID)
		assert.ErrorIs(t, err, ErrAlreadyReviewed)
	})

	t.Run("confirmed duplicates can still be restored", func(t *testing.T) {
		store, record := setup(t)
		ctx := context.Background()

		require.NoError(t, store.ConfirmDuplicate(ctx, record.ID))
		_, err := store.RestoreDuplicate(ctx, record.ID)
		require.NoError(t, err)
	})

	t.Run("restore adds an exact repeat of the stored row", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		t.Cleanup(cleanup)
		ctx := context.Background()

		existing := seedLedger(t, store)
		repeat := existing
		repeat.ID = ""
		run := &model.DedupRun{
			Source: model.SourcePlaid,
			Label:  "feed",
			Stats:  model.DedupStats{Total: 1, Tier1Matches: 1},
		}
		_, err := store.CommitImport(ctx, run, nil, []model.MatchResult{{
			Transaction: repeat,
			MatchedWith: existing,
			Confidence:  1,
			Tier:        model.TierDeterministic,
		}})
		require.NoError(t, err)

		pending, err := store.GetPendingDuplicates(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		restored, err := store.RestoreDuplicate(ctx, pending[0].ID)
		require.NoError(t, err)
		assert.NotEqual(t, existing.ID, restored.ID)

		count, err := store.CountTransactions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("unknown duplicate", func(t *testing.T) {
		store, _ := setup(t)
		_, err := store.RestoreDuplicate(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
