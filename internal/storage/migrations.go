package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Transaction ledger",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date TEXT NOT NULL,
					authorized_date TEXT,
					posted_date TEXT,
					description TEXT NOT NULL,
					provider_merchant_name TEXT,
					amount TEXT NOT NULL,
					account_id TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT 'manual',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_id)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Dedup runs and duplicate decisions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS dedup_runs (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					label TEXT NOT NULL DEFAULT '',
					total INTEGER NOT NULL,
					tier1_matches INTEGER NOT NULL,
					tier2_matches INTEGER NOT NULL,
					unique_count INTEGER NOT NULL,
					escalated INTEGER NOT NULL,
					failed_batches INTEGER NOT NULL,
					processing_ms INTEGER NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS dedup_duplicates (
					id TEXT PRIMARY KEY,
					run_id TEXT NOT NULL REFERENCES dedup_runs(id) ON DELETE CASCADE,
					date TEXT NOT NULL,
					authorized_date TEXT,
					posted_date TEXT,
					description TEXT NOT NULL,
					provider_merchant_name TEXT,
					amount TEXT NOT NULL,
					account_id TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT 'manual',
					matched_id TEXT NOT NULL DEFAULT '',
					matched_description TEXT NOT NULL,
					tier TEXT NOT NULL,
					confidence REAL NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					reviewed_at DATETIME
				)`,
				`CREATE INDEX idx_dedup_duplicates_run ON dedup_duplicates(run_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Index pending duplicate reviews",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE INDEX idx_dedup_duplicates_status ON dedup_duplicates(status)`,
				`CREATE INDEX idx_dedup_runs_created ON dedup_runs(created_at)`,
			)
		},
	},
}

// SchemaVersion returns the database's current user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if currentVersion > ExpectedSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, ExpectedSchemaVersion)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if upErr := migration.Up(tx); upErr != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
			}
			if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
				return fmt.Errorf("failed to update schema version: %w", execErr)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
