package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

const storeTimeout = 10 * time.Second

// decisionMsg reports the outcome of a confirm or restore.
type decisionMsg struct {
	err    error
	status model.ReviewStatus
	index  int
}

func confirmCmd(ctx context.Context, store cli.ReviewStore, index int, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		err := store.ConfirmDuplicate(ctx, id)
		return decisionMsg{index: index, status: model.ReviewConfirmed, err: err}
	}
}

func restoreCmd(ctx context.Context, store cli.ReviewStore, index int, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		_, err := store.RestoreDuplicate(ctx, id)
		return decisionMsg{index: index, status: model.ReviewRestored, err: err}
	}
}
