package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Lookup and review errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyReviewed = errors.New("duplicate already reviewed")

	// ErrTooManyOccurrences means no free slot was left for a repeated charge.
	ErrTooManyOccurrences = errors.New("too many identical transactions")
)

// CommitImport records a dedup run and inserts its unique transactions in a
// single database transaction. Either everything is stored or nothing is. It
// returns the unique transactions actually inserted.
func (s *SQLiteStorage) CommitImport(ctx context.Context, run *model.DedupRun, unique []model.Transaction, duplicates []model.MatchResult) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRun(run); err != nil {
		return nil, err
	}
	if err := validateTransactions(unique); err != nil {
		return nil, err
	}

	var inserted []model.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		if inserted, txErr = s.saveTransactionsTx(ctx, tx, unique); txErr != nil {
			return txErr
		}
		return s.saveDedupRunTx(ctx, tx, run, duplicates)
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// SaveDedupRun records a dedup run and its duplicate decisions. The run's ID
// and CreatedAt are filled in when empty.
func (s *SQLiteStorage) SaveDedupRun(ctx context.Context, run *model.DedupRun, duplicates []model.MatchResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveDedupRunTx(ctx, tx, run, duplicates)
	})
}

func (s *SQLiteStorage) saveDedupRunTx(ctx context.Context, tx *sql.Tx, run *model.DedupRun, duplicates []model.MatchResult) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO dedup_runs (
			id, source, label, total, tier1_matches, tier2_matches,
			unique_count, escalated, failed_batches, processing_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Source),
		run.Label,
		run.Stats.Total,
		run.Stats.Tier1Matches,
		run.Stats.Tier2Matches,
		run.Stats.UniqueCount,
		run.Stats.Escalated,
		run.Stats.FailedBatches,
		run.Stats.ProcessingTimeMs(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dedup run: %w", err)
	}

	if len(duplicates) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dedup_duplicates (
			id, run_id, date, authorized_date, posted_date, description,
			provider_merchant_name, amount, account_id, source,
			matched_id, matched_description, tier, confidence, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, dup := range duplicates {
		txn := dup.Transaction
		source := txn.Source
		if source == "" {
			source = run.Source
		}
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(),
			run.ID,
			txn.Date,
			nullString(txn.AuthorizedDate),
			nullString(txn.PostedDate),
			txn.Description,
			nullString(txn.ProviderMerchantName),
			txn.Amount.StringFixed(2),
			txn.AccountID,
			string(source),
			dup.MatchedWith.ID,
			dup.MatchedWith.Description,
			dup.Tier.String(),
			dup.Confidence,
			string(model.ReviewPending),
		)
		if err != nil {
			return fmt.Errorf("failed to insert duplicate %d: %w", i, err)
		}
	}
	return nil
}

const runColumns = `id, source, label, total, tier1_matches, tier2_matches,
	unique_count, escalated, failed_batches, processing_ms, created_at`

// ListDedupRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStorage) ListDedupRuns(ctx context.Context, limit int) ([]model.DedupRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + runColumns + ` FROM dedup_runs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedup runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.DedupRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dedup runs: %w", err)
	}
	return runs, nil
}

// GetDedupRun returns a single run by ID.
func (s *SQLiteStorage) GetDedupRun(ctx context.Context, id string) (*model.DedupRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM dedup_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dedup run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func scanRun(row scanner) (model.DedupRun, error) {
	var (
		run          model.DedupRun
		source       string
		processingMs int64
	)
	err := row.Scan(
		&run.ID,
		&source,
		&run.Label,
		&run.Stats.Total,
		&run.Stats.Tier1Matches,
		&run.Stats.Tier2Matches,
		&run.Stats.UniqueCount,
		&run.Stats.Escalated,
		&run.Stats.FailedBatches,
		&processingMs,
		&run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan dedup run: %w", err)
	}
	run.Source = model.Source(source)
	run.Stats.ProcessingTime = time.Duration(processingMs) * time.Millisecond
	return run, nil
}

const duplicateColumns = `id, run_id, date, authorized_date, posted_date, description,
	provider_merchant_name, amount, account_id, source,
	matched_id, matched_description, tier, confidence, status, reviewed_at`

// GetDuplicates returns the duplicates recorded by a run in insertion order.
func (s *SQLiteStorage) GetDuplicates(ctx context.Context, runID string) ([]model.DuplicateRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	return s.queryDuplicates(ctx, `WHERE run_id = ? ORDER BY rowid ASC`, runID)
}

// GetPendingDuplicates returns every duplicate still awaiting review, oldest
// first.
func (s *SQLiteStorage) GetPendingDuplicates(ctx context.Context) ([]model.DuplicateRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryDuplicates(ctx, `WHERE status = ? ORDER BY rowid ASC`, string(model.ReviewPending))
}

func (s *SQLiteStorage) queryDuplicates(ctx context.Context, where string, args ...any) ([]model.DuplicateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+duplicateColumns+` FROM dedup_duplicates `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.DuplicateRecord
	for rows.Next() {
		record, err := scanDuplicate(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating duplicates: %w", err)
	}
	return records, nil
}

func getDuplicateTx(ctx context.Context, q queryable, id string) (model.DuplicateRecord, error) {
	record, err := scanDuplicate(q.QueryRowContext(ctx, `SELECT `+duplicateColumns+` FROM dedup_duplicates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return record, fmt.Errorf("%w: duplicate %s", ErrNotFound, id)
	}
	return record, err
}

func scanDuplicate(row scanner) (model.DuplicateRecord, error) {
	var (
		record                       model.DuplicateRecord
		authorized, posted           sql.NullString
		providerName                 sql.NullString
		amount, source, tier, status string
		reviewedAt                   sql.NullTime
	)
	err := row.Scan(
		&record.ID,
		&record.RunID,
		&record.Transaction.Date,
		&authorized,
		&posted,
		&record.Transaction.Description,
		&providerName,
		&amount,
		&record.Transaction.AccountID,
		&source,
		&record.MatchedID,
		&record.MatchedDescription,
		&tier,
		&record.Confidence,
		&status,
		&reviewedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return record, err
	}
	if err != nil {
		return record, fmt.Errorf("failed to scan duplicate: %w", err)
	}

	if record.Transaction.Amount, err = decimal.NewFromString(amount); err != nil {
		return record, fmt.Errorf("duplicate %s has malformed amount %q: %w", record.ID, amount, err)
	}
	if record.Tier, err = model.ParseMatchTier(tier); err != nil {
		return record, fmt.Errorf("duplicate %s: %w", record.ID, err)
	}
	if record.Status, err = model.ParseReviewStatus(status); err != nil {
		return record, fmt.Errorf("duplicate %s: %w", record.ID, err)
	}
	record.Transaction.AuthorizedDate = stringPtr(authorized)
	record.Transaction.PostedDate = stringPtr(posted)
	record.Transaction.ProviderMerchantName = stringPtr(providerName)
	record.Transaction.Source = model.Source(source)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		record.ReviewedAt = &t
	}
	return record, nil
}

// ConfirmDuplicate marks a pending duplicate as correctly dropped.
func (s *SQLiteStorage) ConfirmDuplicate(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		record, err := getDuplicateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if record.Status != model.ReviewPending {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, id, record.Status)
		}
		return setReviewStatusTx(ctx, tx, id, model.ReviewConfirmed)
	})
}

// RestoreDuplicate inserts a wrongly dropped transaction into the ledger and
// marks its duplicate record as restored. The row is added even when an
// identical transaction is already stored. It returns the ledger row.
func (s *SQLiteStorage) RestoreDuplicate(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var restored model.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		record, err := getDuplicateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if record.Status == model.ReviewRestored {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, id, record.Status)
		}

		// A restored transaction may be an exact repeat of the row it matched,
		// so it always gets a row of its own.
		restored, err = s.appendTransactionTx(ctx, tx, record.Transaction)
		if err != nil {
			return err
		}
		return setReviewStatusTx(ctx, tx, id, model.ReviewRestored)
	})
	if err != nil {
		return nil, err
	}
	return &restored, nil
}

func setReviewStatusTx(ctx context.Context, tx *sql.Tx, id string, status model.ReviewStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE dedup_duplicates SET status = ?, reviewed_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update duplicate %s: %w", id, err)
	}
	return nil
}
