package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-reconcile/internal/csvimport"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

func importCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-csv [files...]",
		Short: "Import transactions from CSV exports",
		Long: `Import transactions from bank or card CSV exports, dropping any that
are already in the ledger.

Columns are found by header name: a date, a description and either an
amount or a debit/credit pair. An authorized date, merchant and account
column are used when present.

Examples:
  # Import one export
  spice import-csv ~/Downloads/checking.csv

  # Preview a card export that lists charges as positive amounts
  spice import-csv --invert-sign --dry-run ~/Downloads/card_*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportCSV,
	}

	addImportFlags(cmd)
	cmd.Flags().String("account", "", "Account ID for files without an account column")
	cmd.Flags().Bool("invert-sign", false, "Flip amount signs (charges listed as positive)")

	return cmd
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	files, err := expandFileArgs(args)
	if err != nil {
		return err
	}

	account, _ := cmd.Flags().GetString("account")
	invert, _ := cmd.Flags().GetBool("invert-sign")
	parse := csvFileParser(csvimport.Options{AccountID: account, InvertSign: invert})

	return runImportCommand(cmd, model.SourceCSV, func(ctx context.Context) (string, []model.Transaction, error) {
		txs, err := loadFiles(ctx, files, parse)
		return fileLabel(files), txs, err
	})
}
