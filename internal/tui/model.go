// Package tui implements the interactive duplicate review screen.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

const maxTableHeight = 15

// Model is the review screen state.
type Model struct {
	ctx     context.Context
	store   cli.ReviewStore
	status  string
	records []model.DuplicateRecord
	help    help.Model
	keymap  KeyMap
	table   table.Model
	summary cli.ReviewSummary
	width   int
	busy    bool
}

// NewModel creates a review model over records. records is copied.
func NewModel(ctx context.Context, store cli.ReviewStore, records []model.DuplicateRecord) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Date", Width: 10},
			{Title: "Incoming", Width: 30},
			{Title: "Matched", Width: 28},
			{Title: "Amount", Width: 10},
			{Title: "Tier", Width: 18},
			{Title: "Status", Width: 9},
		}),
		table.WithFocused(true),
		table.WithHeight(min(len(records)+1, maxTableHeight)),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cli.SubtleColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#1a1a1a")).
		Background(cli.InfoColor)
	t.SetStyles(styles)

	m := Model{
		ctx:     ctx,
		store:   store,
		records: append([]model.DuplicateRecord(nil), records...),
		help:    help.New(),
		keymap:  DefaultKeyMap(),
		table:   t,
	}
	m.refreshRows()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.table.SetHeight(max(3, min(len(m.records)+1, msg.Height-12)))
		return m, nil

	case decisionMsg:
		return m.applyDecision(msg), nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keymap.Confirm):
			return m.decide(model.ReviewConfirmed)
		case key.Matches(msg, m.keymap.Restore):
			return m.decide(model.ReviewRestored)
		case key.Matches(msg, m.keymap.Skip):
			m.status = ""
			m.table.MoveDown(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) decide(status model.ReviewStatus) (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if m.busy || idx < 0 || idx >= len(m.records) {
		return m, nil
	}
	record := m.records[idx]

	switch {
	case record.Status == model.ReviewRestored:
		m.status = cli.WarningStyle.Render("Already restored")
		return m, nil
	case status == model.ReviewConfirmed && record.Status != model.ReviewPending:
		m.status = cli.WarningStyle.Render("Already reviewed")
		return m, nil
	}

	m.busy = true
	m.status = cli.SubtleStyle.Render("Saving...")
	if status == model.ReviewConfirmed {
		return m, confirmCmd(m.ctx, m.store, idx, record.ID)
	}
	return m, restoreCmd(m.ctx, m.store, idx, record.ID)
}

func (m Model) applyDecision(msg decisionMsg) Model {
	m.busy = false
	if msg.index < 0 || msg.index >= len(m.records) {
		return m
	}

	record := &m.records[msg.index]
	if msg.err != nil {
		m.status = cli.FormatError(fmt.Sprintf("%s: %v", record.Transaction.Description, msg.err))
		return m
	}

	previous := record.Status
	record.Status = msg.status
	switch msg.status {
	case model.ReviewConfirmed:
		m.summary.Confirmed++
		m.status = cli.SuccessStyle.Render(cli.SuccessIcon + " Kept out of the ledger")
	case model.ReviewRestored:
		if previous == model.ReviewConfirmed {
			m.summary.Confirmed--
		}
		m.summary.Restored++
		m.status = cli.SuccessStyle.Render(cli.SuccessIcon + " Restored to the ledger")
	}

	m.refreshRows()
	if m.table.Cursor() == msg.index {
		m.table.MoveDown(1)
	}
	return m
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, len(m.records))
	for i, r := range m.records {
		rows[i] = table.Row{
			r.Transaction.Date,
			r.Transaction.Description,
			r.MatchedDescription,
			r.Transaction.Amount.StringFixed(2),
			fmt.Sprintf("%s %.2f", r.Tier, r.Confidence),
			string(r.Status),
		}
	}
	m.table.SetRows(rows)
}

// Records returns the records with their current review status.
func (m Model) Records() []model.DuplicateRecord {
	return append([]model.DuplicateRecord(nil), m.records...)
}

// Summary returns the decisions made so far. Records still pending count as
// skipped.
func (m Model) Summary() cli.ReviewSummary {
	s := m.summary
	for _, r := range m.records {
		if r.Status == model.ReviewPending {
			s.Skipped++
		}
	}
	return s
}
