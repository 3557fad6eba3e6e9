package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-reconcile/internal/csvimport"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/plaid"
)

const ledgerCSV = `Date,Description,Amount
2025-01-15,Burrito Barn,-22.77
2025-01-15,Amazon Web Services,-45.67
`

const cardCSV = `Posted Date,Description,Amount
01/15/2025,AplPay BURRITO BARN 1249RIVERDALE XX,-22.77
01/16/2025,AWS,-45.67
01/17/2025,Hardware Depot,-301.10
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// useTestDB points the commands at a fresh database for the test.
func useTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spice.db")
	viper.Set("database.path", path)
	t.Cleanup(viper.Reset)
	return path
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDedupCommand(t *testing.T) {
	dir := t.TempDir()
	ledger := writeFile(t, dir, "ledger.csv", ledgerCSV)
	card := writeFile(t, dir, "card.csv", cardCSV)
	output := filepath.Join(dir, "new_only.csv")

	out, err := execute(t, dedupCmd(), "", "--verifier=mock", "--output", output, card, ledger)
	require.NoError(t, err)
	assert.Contains(t, out, "card.csv vs ledger.csv")
	assert.Contains(t, out, "Wrote 1 unique transactions")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	result, err := csvimport.NewParser(csvimport.Options{}).ParseFile(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "Hardware Depot", result.Transactions[0].Description)
	assert.Equal(t, "2025-01-17", result.Transactions[0].Date)
	assert.Equal(t, "-301.10", result.Transactions[0].Amount.StringFixed(2))
}

func TestDedupCommandRejectsUnknownVerifier(t *testing.T) {
	dir := t.TempDir()
	ledger := writeFile(t, dir, "ledger.csv", ledgerCSV)

	_, err := execute(t, dedupCmd(), "", "--verifier=oracle", ledger, ledger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown verifier")
}

func TestImportAndReviewCommands(t *testing.T) {
	useTestDB(t)
	dir := t.TempDir()
	ledger := writeFile(t, dir, "ledger.csv", ledgerCSV)

	out, err := execute(t, importCSVCmd(), "", "--verifier=none", ledger)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 new transactions")

	feed := plaid.NewMockClient(
		model.Transaction{Description: "BURRITO BARN", Amount: decimal.RequireFromString("-22.77"), Date: "2025-01-15", AccountID: "chk", Source: model.SourcePlaid},
		model.Transaction{Description: "Corner Bakery", Amount: decimal.RequireFromString("-9.50"), Date: "2025-01-18", AccountID: "sav", Source: model.SourcePlaid},
	)
	previous := newPlaidFetcher
	newPlaidFetcher = func(plaid.Config) (plaid.TransactionFetcher, error) { return feed, nil }
	t.Cleanup(func() { newPlaidFetcher = previous })

	out, err = execute(t, importCmd(), "", "--verifier=none", "--start-date", "2025-01-01", "--end-date", "2025-01-31", "--accounts", "chk")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 0 new transactions")
	require.Len(t, feed.GetTransactionsCalls, 1)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), feed.GetTransactionsCalls[0].StartDate)

	out, err = execute(t, runsCmd(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger.csv")
	assert.Contains(t, out, "plaid")

	out, err = execute(t, reviewCmd(), "r\n", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "BURRITO BARN")
	assert.Contains(t, out, "0 confirmed, 1 restored, 0 skipped")

	out, err = execute(t, reviewCmd(), "", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to review")
}

func TestImportListAccounts(t *testing.T) {
	feed := plaid.NewMockClient()
	feed.GetAccountsFn = func(context.Context) ([]string, error) {
		return []string{"chk", "sav"}, nil
	}
	previous := newPlaidFetcher
	newPlaidFetcher = func(plaid.Config) (plaid.TransactionFetcher, error) { return feed, nil }
	t.Cleanup(func() { newPlaidFetcher = previous })

	out, err := execute(t, importCmd(), "", "--list-accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 accounts")
	assert.Contains(t, out, "sav")
	assert.Empty(t, feed.GetTransactionsCalls)
}

func TestMigrateCommand(t *testing.T) {
	useTestDB(t)

	out, err := execute(t, migrateCmd(), "", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")
	assert.Contains(t, out, "Migrations pending")

	out, err = execute(t, migrateCmd(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "was 0")

	out, err = execute(t, migrateCmd(), "", "--status")
	require.NoError(t, err)
	assert.NotContains(t, out, "Migrations pending")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, versionCmd(), "")
	require.NoError(t, err)
	assert.Equal(t, "spice dev\n", out)
}
