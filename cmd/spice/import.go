package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/plaid"
)

// newPlaidFetcher is swapped in tests.
var newPlaidFetcher = func(cfg plaid.Config) (plaid.TransactionFetcher, error) {
	return plaid.NewClient(cfg)
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from Plaid",
		Long: `Import posted transactions from your connected Plaid item, dropping any
that are already in the ledger.

Plaid credentials are read from plaid.client_id, plaid.secret,
plaid.environment and plaid.access_token (or SPICE_PLAID_* variables).`,
		RunE: runImport,
	}

	addImportFlags(cmd)
	addDateRangeFlags(cmd)
	cmd.Flags().StringSlice("accounts", []string{}, "Filter by specific account IDs (comma-separated)")
	cmd.Flags().Bool("list-accounts", false, "List available accounts without importing")

	return cmd
}

func plaidConfig() plaid.Config {
	env := viper.GetString("plaid.environment")
	if env == "" {
		env = "sandbox"
	}
	return plaid.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: env,
		AccessToken: viper.GetString("plaid.access_token"),
		BaseURL:     viper.GetString("plaid.base_url"),
	}
}

func runImport(cmd *cobra.Command, _ []string) error {
	fetcher, err := newPlaidFetcher(plaidConfig())
	if err != nil {
		return common.NewUserError("Plaid is not configured", err)
	}

	if listOnly, _ := cmd.Flags().GetBool("list-accounts"); listOnly {
		return listAccounts(cmd, fetcher)
	}

	start, end, err := parseDateRange(cmd, time.Now())
	if err != nil {
		return err
	}
	accounts, _ := cmd.Flags().GetStringSlice("accounts")

	return runImportCommand(cmd, model.SourcePlaid, func(ctx context.Context) (string, []model.Transaction, error) {
		txs, err := fetchFeed(ctx, "Plaid", fetcher, start, end, accounts)
		label := fmt.Sprintf("Plaid %s to %s", start.Format(model.DateLayout), end.Format(model.DateLayout))
		return label, txs, err
	})
}

// fetchFeed pulls a date range from a feed and applies the account filter.
func fetchFeed(ctx context.Context, name string, fetcher plaid.TransactionFetcher, start, end time.Time, accounts []string) ([]model.Transaction, error) {
	slog.Info(cli.FormatTitle("Fetching transactions from "+name),
		"start", start.Format(model.DateLayout),
		"end", end.Format(model.DateLayout))

	txs, err := fetcher.GetTransactions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	if len(accounts) > 0 {
		txs = filterTransactionsByAccount(txs, accounts)
		slog.Info("Filtered to specified accounts", "accounts", accounts, "count", len(txs))
	}

	slog.Info(cli.FormatSuccess(fmt.Sprintf("Fetched %d transactions", len(txs))))
	return txs, nil
}

func listAccounts(cmd *cobra.Command, fetcher plaid.TransactionFetcher) error {
	accounts, err := fetcher.GetAccounts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(accounts) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No accounts found"))
		return nil
	}
	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Found %d accounts", len(accounts))))
	for _, account := range accounts {
		fmt.Fprintf(out, "  • %s\n", account)
	}
	return nil
}

func filterTransactionsByAccount(transactions []model.Transaction, accountIDs []string) []model.Transaction {
	accountMap := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		accountMap[id] = true
	}

	var filtered []model.Transaction
	for _, tx := range transactions {
		if accountMap[tx.AccountID] {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}
