package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Run shows the review screen until the user quits or ctx ends. The summary
// reflects every decision saved before the screen closed.
func Run(ctx context.Context, store cli.ReviewStore, records []model.DuplicateRecord) (cli.ReviewSummary, error) {
	if store == nil {
		return cli.ReviewSummary{}, errors.New("review store is required")
	}

	program := tea.NewProgram(
		NewModel(ctx, store, records),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	var summary cli.ReviewSummary
	if m, ok := final.(Model); ok {
		summary = m.Summary()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return summary, fmt.Errorf("review UI failed: %w", err)
	}
	return summary, nil
}
