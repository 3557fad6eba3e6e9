package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/config"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/plaid"
	"github.com/Veraticus/spice-reconcile/internal/simplefin"
)

// newSimpleFINFetcher is swapped in tests.
var newSimpleFINFetcher = func(token, accessURL, stateDir string) (plaid.TransactionFetcher, error) {
	if accessURL != "" {
		return simplefin.NewClientWithAccessURL(accessURL), nil
	}
	return simplefin.NewClient(token, stateDir)
}

func importSimpleFINCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-simplefin",
		Short: "Import transactions from SimpleFIN Bridge",
		Long: `Import posted transactions from SimpleFIN Bridge, dropping any that are
already in the ledger.

The setup token (simplefin.token or SPICE_SIMPLEFIN_TOKEN) is claimed on
first use and the resulting access URL is saved next to the database.`,
		RunE: runImportSimpleFIN,
	}

	addImportFlags(cmd)
	addDateRangeFlags(cmd)
	cmd.Flags().StringSlice("accounts", []string{}, "Filter by specific account IDs (comma-separated)")
	cmd.Flags().Bool("list-accounts", false, "List available accounts without importing")

	return cmd
}

func runImportSimpleFIN(cmd *cobra.Command, _ []string) error {
	token := viper.GetString("simplefin.token")
	accessURL := viper.GetString("simplefin.access_url")
	if token == "" && accessURL == "" {
		return common.NewUserError("SimpleFIN is not configured",
			fmt.Errorf("%w: set simplefin.token or simplefin.access_url", common.ErrMissingConfig))
	}

	stateDir := viper.GetString("simplefin.state_dir")
	if stateDir == "" {
		stateDir = filepath.Dir(databasePath())
	}

	fetcher, err := newSimpleFINFetcher(token, accessURL, config.ExpandPath(stateDir))
	if err != nil {
		return fmt.Errorf("failed to create SimpleFIN client: %w", err)
	}

	if listOnly, _ := cmd.Flags().GetBool("list-accounts"); listOnly {
		return listAccounts(cmd, fetcher)
	}

	start, end, err := parseDateRange(cmd, time.Now())
	if err != nil {
		return err
	}
	accounts, _ := cmd.Flags().GetStringSlice("accounts")

	return runImportCommand(cmd, model.SourceSimpleFIN, func(ctx context.Context) (string, []model.Transaction, error) {
		txs, err := fetchFeed(ctx, "SimpleFIN", fetcher, start, end, accounts)
		label := fmt.Sprintf("SimpleFIN %s to %s", start.Format(model.DateLayout), end.Format(model.DateLayout))
		return label, txs, err
	})
}
