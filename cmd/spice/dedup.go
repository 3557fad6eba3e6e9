package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/config"
	"github.com/Veraticus/spice-reconcile/internal/csvimport"
	"github.com/Veraticus/spice-reconcile/internal/dedup"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

func dedupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup NEW EXISTING",
		Short: "Compare two exports without touching the database",
		Long: `Find which transactions in NEW already appear in EXISTING. Both files
may be CSV or OFX/QFX exports. The database is not read or written.

Examples:
  # Which card charges are already in last month's ledger export?
  spice dedup card.csv ledger.csv

  # Keep only the new rows, using the offline verifier
  spice dedup --verifier=mock --output new_only.csv card.qfx ledger.csv`,
		Args: cobra.ExactArgs(2),
		RunE: runDedup,
	}

	cmd.Flags().String("verifier", verifierLLM, "Tier-2 verifier: llm, mock or none")
	cmd.Flags().Int("show", 0, "Maximum duplicates to list (0 for all)")
	cmd.Flags().StringP("output", "o", "", "Write the unique transactions to this CSV file")

	return cmd
}

func runDedup(cmd *cobra.Command, args []string) error {
	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context())
	defer handler.Stop()

	newTxs, err := loadAnyFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	existing, err := loadAnyFile(ctx, args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}

	cfg, err := config.LoadDedup(viper.GetViper())
	if err != nil {
		return err
	}
	mode, _ := cmd.Flags().GetString("verifier")
	verifier, err := createVerifier(mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	progress := cli.NewBatchProgress(cmd.ErrOrStderr())
	opts := cfg.Options()
	opts.Logger = slog.Default().With("component", "dedup")
	opts.OnBatchDone = progress.Update

	result, err := dedup.Deduplicate(ctx, newTxs, existing, verifier, opts)
	progress.Finish()
	if err != nil {
		slog.Warn("Deduplication ended early; unresolved pairs kept as new", "error", err)
	}

	show, _ := cmd.Flags().GetInt("show")
	title := fmt.Sprintf("%s %s vs %s", cli.SpiceIcon, filepath.Base(args[0]), filepath.Base(args[1]))
	fmt.Fprintln(out, cli.RenderDedupSummary(title, result.Stats))
	fmt.Fprintln(out, cli.RenderDuplicates(result.Duplicates, show))

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := writeTransactionsCSVFile(output, result.Unique); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Wrote %d unique transactions to %s", len(result.Unique), output)))
	}

	if handler.WasInterrupted() {
		return fmt.Errorf("comparison interrupted: %w", ctx.Err())
	}
	return nil
}

// loadAnyFile parses a CSV or OFX/QFX file, chosen by extension.
func loadAnyFile(ctx context.Context, path string) ([]model.Transaction, error) {
	parse := csvFileParser(csvimport.Options{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		parse = ofxFileParser()
	}
	return parsePath(ctx, path, parse)
}

func writeTransactionsCSVFile(path string, txs []model.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeTransactionsCSV(f, txs); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// writeTransactionsCSV writes txs with headers csvimport reads back.
func writeTransactionsCSV(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Authorized Date", "Description", "Merchant", "Amount", "Account"}); err != nil {
		return err
	}
	for _, tx := range txs {
		authorized := ""
		if tx.AuthorizedDate != nil {
			authorized = *tx.AuthorizedDate
		}
		record := []string{
			tx.Date,
			authorized,
			tx.Description,
			tx.MerchantName(),
			tx.Amount.StringFixed(2),
			tx.AccountID,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
