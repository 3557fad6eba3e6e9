package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const transactionColumns = `id, date, authorized_date, posted_date, description,
	provider_merchant_name, amount, account_id, source`

// SaveTransactions inserts transactions into the ledger. Identical charges
// within one call are stored as separate rows; a transaction whose
// occurrence is already stored is skipped, so saving the same batch twice
// inserts nothing the second time. It returns the rows actually inserted,
// with their assigned IDs.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateTransactions(transactions); err != nil {
		return nil, err
	}

	var inserted []model.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		inserted, txErr = s.saveTransactionsTx(ctx, tx, transactions)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

const insertTransactionSQL = `
	INSERT OR IGNORE INTO transactions (
		id, hash, date, authorized_date, posted_date, description,
		provider_merchant_name, amount, account_id, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// maxOccurrences bounds the search for a free occurrence slot.
const maxOccurrences = 10000

// occurrenceHash keys the n-th repeat of a fingerprint. The first
// occurrence keeps the bare hash.
func occurrenceHash(base string, n int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, n)
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) ([]model.Transaction, error) {
	if len(transactions) == 0 {
		return nil, nil
	}

	stmt, err := tx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	seen := make(map[string]int, len(transactions))
	inserted := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		base := txn.GenerateHash()
		n := seen[base]
		seen[base] = n + 1

		stored, ok, err := insertTransaction(ctx, stmt, txn, occurrenceHash(base, n))
		if err != nil {
			return nil, err
		}
		if ok {
			inserted = append(inserted, stored)
		}
	}
	return inserted, nil
}

// appendTransactionTx stores txn as a further occurrence of its fingerprint,
// taking the first free slot.
func (s *SQLiteStorage) appendTransactionTx(ctx context.Context, tx *sql.Tx, txn model.Transaction) (model.Transaction, error) {
	stmt, err := tx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	base := txn.GenerateHash()
	for n := 0; n < maxOccurrences; n++ {
		stored, ok, err := insertTransaction(ctx, stmt, txn, occurrenceHash(base, n))
		if err != nil {
			return model.Transaction{}, err
		}
		if ok {
			return stored, nil
		}
	}
	return model.Transaction{}, fmt.Errorf("%w: %s repeats more than %d times", ErrTooManyOccurrences, txn.Description, maxOccurrences)
}

func insertTransaction(ctx context.Context, stmt *sql.Stmt, txn model.Transaction, hash string) (model.Transaction, bool, error) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Source == "" {
		txn.Source = model.SourceManual
	}

	res, err := stmt.ExecContext(ctx,
		txn.ID,
		hash,
		txn.Date,
		nullString(txn.AuthorizedDate),
		nullString(txn.PostedDate),
		txn.Description,
		nullString(txn.ProviderMerchantName),
		txn.Amount.StringFixed(2),
		txn.AccountID,
		string(txn.Source),
	)
	if err != nil {
		return txn, false, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return txn, false, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	return txn, n == 1, nil
}

// GetTransactionsInRange returns ledger transactions whose primary date falls
// within [start, end], ordered by date and insertion.
func (s *SQLiteStorage) GetTransactionsInRange(ctx context.Context, start, end string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(start, end); err != nil {
		return nil, err
	}
	return s.getTransactionsInRangeTx(ctx, s.db, start, end)
}

func (s *SQLiteStorage) getTransactionsInRangeTx(ctx context.Context, q queryable, start, end string) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, rowid ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// GetTransaction returns one ledger transaction by ID.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// CountTransactions returns the number of ledger transactions.
func (s *SQLiteStorage) CountTransactions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (model.Transaction, error) {
	var (
		txn                  model.Transaction
		authorized, posted   sql.NullString
		providerName, amount sql.NullString
		source               string
	)
	err := row.Scan(
		&txn.ID,
		&txn.Date,
		&authorized,
		&posted,
		&txn.Description,
		&providerName,
		&amount,
		&txn.AccountID,
		&source,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return txn, err
	}
	if err != nil {
		return txn, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Amount, err = decimal.NewFromString(amount.String)
	if err != nil {
		return txn, fmt.Errorf("transaction %s has malformed amount %q: %w", txn.ID, amount.String, err)
	}
	txn.AuthorizedDate = stringPtr(authorized)
	txn.PostedDate = stringPtr(posted)
	txn.ProviderMerchantName = stringPtr(providerName)
	txn.Source = model.Source(source)
	return txn, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return model.StringPtr(ns.String)
}
