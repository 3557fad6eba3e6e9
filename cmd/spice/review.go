package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/tui"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review duplicates dropped by past imports",
		Long: `Walk through transactions that imports kept out of the ledger. Confirm
a duplicate to mark it reviewed, or restore it to insert the transaction
after all.

By default every pending duplicate is shown; --run limits the review to
one import.`,
		RunE: runReview,
	}

	cmd.Flags().String("run", "", "Review the duplicates of one run (including reviewed ones)")
	cmd.Flags().Bool("plain", false, "Use line prompts instead of the full-screen view")

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close database", "error", closeErr)
		}
	}()

	runID, _ := cmd.Flags().GetString("run")
	var records []model.DuplicateRecord
	if runID != "" {
		records, err = store.GetDuplicates(ctx, runID)
	} else {
		records, err = store.GetPendingDuplicates(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load duplicates: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, cli.FormatSuccess("Nothing to review"))
		return nil
	}

	var summary cli.ReviewSummary
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		summary, err = cli.NewLineReviewer(cmd.InOrStdin(), out, store).Review(ctx, records)
	} else {
		summary, err = tui.Run(ctx, store, records)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Review finished: %d confirmed, %d restored, %d skipped",
		summary.Confirmed, summary.Restored, summary.Skipped)))
	return nil
}
