package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-reconcile/internal/cli"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List past deduplication runs",
		Long: `List recent import runs with their deduplication stats. Given a run ID,
show that run and every duplicate it dropped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRuns,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum runs to list")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		run, err := store.GetDedupRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load run %s: %w", args[0], err)
		}
		records, err := store.GetDuplicates(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to load duplicates: %w", err)
		}

		title := fmt.Sprintf("Run %s: %s (%s)", run.ID, run.Label, run.Source)
		fmt.Fprintln(out, cli.RenderDedupSummary(title, run.Stats))
		for _, record := range records {
			fmt.Fprintln(out, cli.RenderDuplicateRecord(record))
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListDedupRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	fmt.Fprintln(out, cli.RenderRuns(runs))
	return nil
}
