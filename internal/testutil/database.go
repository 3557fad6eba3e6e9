// Package testutil provides shared test fixtures: a migrated ledger database
// and builders for transactions.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/storage"
)

// TestDB is a migrated database seeded with a ledger.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	// Ledger holds the seeded transactions with their assigned IDs.
	Ledger []model.Transaction
}

// SetupTestDB creates a database in a temp dir, migrates it and saves ledger.
// The database is closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.JanuaryLedger()...)
func SetupTestDB(t *testing.T, ledger ...model.Transaction) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "spice.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	if len(ledger) > 0 {
		saved, err := store.SaveTransactions(ctx, ledger)
		if err != nil {
			t.Fatalf("failed to seed ledger: %v", err)
		}
		db.Ledger = saved
	}
	return db
}

// MustCount returns the number of stored transactions or fails the test.
func (db *TestDB) MustCount() int {
	db.t.Helper()
	n, err := db.Storage.CountTransactions(context.Background())
	if err != nil {
		db.t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}

// MustFindLedger returns the seeded transaction with description or fails the
// test.
func (db *TestDB) MustFindLedger(description string) model.Transaction {
	db.t.Helper()
	for _, tx := range db.Ledger {
		if tx.Description == description {
			return tx
		}
	}
	db.t.Fatalf("transaction %q not found in seeded ledger", description)
	return model.Transaction{}
}
