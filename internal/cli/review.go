package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// ReviewDecision is what the user chose for one stored duplicate.
type ReviewDecision int

// Review decisions.
const (
	DecisionSkip ReviewDecision = iota
	DecisionConfirm
	DecisionRestore
	DecisionQuit
)

// ReviewStore applies review decisions.
type ReviewStore interface {
	ConfirmDuplicate(ctx context.Context, id string) error
	RestoreDuplicate(ctx context.Context, id string) (*model.Transaction, error)
}

// ReviewSummary counts the decisions made in a review session.
type ReviewSummary struct {
	Confirmed int
	Restored  int
	Skipped   int
}

// LineReviewer walks pending duplicates with plain line prompts. It serves
// terminals where the full-screen review is unavailable.
type LineReviewer struct {
	reader *NonBlockingReader
	writer io.Writer
	store  ReviewStore
}

// NewLineReviewer creates a reviewer reading answers from in.
func NewLineReviewer(in io.Reader, out io.Writer, store ReviewStore) *LineReviewer {
	return &LineReviewer{
		reader: NewNonBlockingReader(in),
		writer: out,
		store:  store,
	}
}

// Review prompts for each record until the records run out, the user quits,
// or ctx ends.
func (r *LineReviewer) Review(ctx context.Context, records []model.DuplicateRecord) (ReviewSummary, error) {
	var summary ReviewSummary

	for i, record := range records {
		fmt.Fprintf(r.writer, "\n%s\n%s\n",
			SubtleStyle.Render(fmt.Sprintf("[%d/%d]", i+1, len(records))),
			RenderDuplicateRecord(record))

		decision, err := r.ask(ctx)
		if err != nil {
			return summary, err
		}

		switch decision {
		case DecisionQuit:
			summary.Skipped += len(records) - i
			return summary, nil
		case DecisionConfirm:
			if err := r.store.ConfirmDuplicate(ctx, record.ID); err != nil {
				return summary, fmt.Errorf("failed to confirm duplicate: %w", err)
			}
			summary.Confirmed++
			fmt.Fprintln(r.writer, FormatSuccess("Kept out of the ledger"))
		case DecisionRestore:
			if _, err := r.store.RestoreDuplicate(ctx, record.ID); err != nil {
				return summary, fmt.Errorf("failed to restore duplicate: %w", err)
			}
			summary.Restored++
			fmt.Fprintln(r.writer, FormatSuccess("Restored to the ledger"))
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

func (r *LineReviewer) ask(ctx context.Context) (ReviewDecision, error) {
	for {
		fmt.Fprint(r.writer, FormatPrompt("[c]onfirm duplicate, [r]estore, [s]kip, [q]uit"))
		line, err := r.reader.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return DecisionQuit, nil
		}
		if err != nil {
			return DecisionQuit, err
		}

		if decision, ok := ParseDecision(line); ok {
			return decision, nil
		}
		fmt.Fprintln(r.writer, FormatWarning("Please answer c, r, s or q"))
	}
}

// ParseDecision maps a typed answer to a decision.
func ParseDecision(answer string) (ReviewDecision, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "c", "confirm", "y", "yes":
		return DecisionConfirm, true
	case "r", "restore":
		return DecisionRestore, true
	case "s", "skip", "":
		return DecisionSkip, true
	case "q", "quit":
		return DecisionQuit, true
	}
	return DecisionSkip, false
}
