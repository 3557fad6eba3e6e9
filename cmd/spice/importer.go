package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/config"
	"github.com/Veraticus/spice-reconcile/internal/dedup"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// importStore is the slice of storage an import needs.
type importStore interface {
	GetTransactionsInRange(ctx context.Context, start, end string) ([]model.Transaction, error)
	CommitImport(ctx context.Context, run *model.DedupRun, unique []model.Transaction, duplicates []model.MatchResult) ([]model.Transaction, error)
}

// importer deduplicates an incoming batch against the stored ledger and
// commits the outcome.
type importer struct {
	store    importStore
	verifier dedup.Verifier
	out      io.Writer
	logger   *slog.Logger
	cfg      config.Dedup
	// showLimit caps the duplicate table; 0 shows every row.
	showLimit int
	dryRun    bool
}

type importOutcome struct {
	Run      *model.DedupRun
	Inserted []model.Transaction
	Result   dedup.Result
}

// addImportFlags registers the flags shared by every import command.
func addImportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "Deduplicate and report without saving")
	cmd.Flags().String("verifier", verifierLLM, "Tier-2 verifier: llm, mock or none")
	cmd.Flags().Int("show", 20, "Maximum duplicates to list (0 for all)")
}

// newImporter builds an importer from the command's flags and config.
func newImporter(cmd *cobra.Command, store importStore) (*importer, error) {
	cfg, err := config.LoadDedup(viper.GetViper())
	if err != nil {
		return nil, err
	}

	mode, _ := cmd.Flags().GetString("verifier")
	verifier, err := createVerifier(mode)
	if err != nil {
		return nil, err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	show, _ := cmd.Flags().GetInt("show")

	return &importer{
		store:     store,
		verifier:  verifier,
		out:       cmd.OutOrStdout(),
		logger:    slog.Default().With("component", "import"),
		cfg:       cfg,
		showLimit: show,
		dryRun:    dryRun,
	}, nil
}

// run deduplicates txs and, unless this is a dry run, saves the unique
// transactions and the run record in one transaction. Nothing is saved when
// ctx ends first.
func (im *importer) run(ctx context.Context, source model.Source, label string, txs []model.Transaction) (*importOutcome, error) {
	if len(txs) == 0 {
		return nil, common.NewUserError("Nothing to import", common.ErrNoTransactions)
	}

	existing, err := im.loadExisting(ctx, txs)
	if err != nil {
		return nil, err
	}

	opts := im.cfg.Options()
	opts.Logger = slog.Default().With("component", "dedup")
	progress := cli.NewBatchProgress(im.out)
	opts.OnBatchDone = progress.Update

	runCtx := ctx
	if im.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, im.cfg.Timeout)
		defer cancel()
	}

	result, err := dedup.NewPipeline(im.verifier, opts).Run(runCtx, txs, existing)
	progress.Finish()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("import cancelled, nothing was saved: %w", ctx.Err())
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("deduplication failed: %w", err)
		}
		im.logger.Warn("Verification timed out; unresolved pairs kept as new",
			"timeout", im.cfg.Timeout)
	}

	outcome := &importOutcome{
		Result: result,
		Run: &model.DedupRun{
			Source: source,
			Label:  label,
			Stats:  result.Stats,
		},
	}

	fmt.Fprintln(im.out, cli.RenderDedupSummary(fmt.Sprintf("%s Import: %s", cli.SpiceIcon, label), result.Stats))
	if len(result.Duplicates) > 0 {
		fmt.Fprintln(im.out, cli.RenderDuplicates(result.Duplicates, im.showLimit))
	}

	if im.dryRun {
		fmt.Fprintln(im.out, cli.FormatWarning("Dry run mode - not saving to database"))
		return outcome, nil
	}

	inserted, err := im.store.CommitImport(ctx, outcome.Run, result.Unique, result.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("failed to save import: %w", err)
	}
	outcome.Inserted = inserted

	if skipped := len(result.Unique) - len(inserted); skipped > 0 {
		im.logger.Info("Skipped transactions already stored", "count", skipped)
	}
	fmt.Fprintln(im.out, cli.FormatSuccess(fmt.Sprintf("Saved %d new transactions (run %s)", len(inserted), outcome.Run.ID)))
	if len(result.Duplicates) > 0 {
		fmt.Fprintln(im.out, cli.FormatInfo("Run 'spice review' to check the dropped duplicates"))
	}
	return outcome, nil
}

// loadExisting reads the stored transactions that could match txs: every
// date variant in the batch, padded by the configured window.
func (im *importer) loadExisting(ctx context.Context, txs []model.Transaction) ([]model.Transaction, error) {
	start, end, ok := model.DateSpan(txs, im.cfg.WindowDays)
	if !ok {
		im.logger.Warn("No parseable dates in batch; every transaction will be kept")
		return nil, nil
	}

	existing, err := im.store.GetTransactionsInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}
	im.logger.Debug("Loaded existing transactions",
		"start", start,
		"end", end,
		"count", len(existing))
	return existing, nil
}

// runImportCommand wires interrupt handling and storage around fetch, then
// hands the fetched batch to an importer.
func runImportCommand(cmd *cobra.Command, source model.Source, fetch func(ctx context.Context) (string, []model.Transaction, error)) error {
	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context())
	defer handler.Stop()

	label, txs, err := fetch(ctx)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Warn("Failed to close database", "error", closeErr)
		}
	}()

	im, err := newImporter(cmd, store)
	if err != nil {
		return err
	}

	_, err = im.run(ctx, source, label, txs)
	if err != nil && handler.WasInterrupted() {
		return common.NewUserError("Import interrupted, nothing was saved", err)
	}
	return err
}
