package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-reconcile/internal/cli"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

var detailStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(cli.PrimaryColor).
	Padding(0, 1)

// View implements tea.Model.
func (m Model) View() string {
	if len(m.records) == 0 {
		return cli.SuccessStyle.Render(cli.SuccessIcon+" Nothing to review") + "\n" + m.help.View(m.keymap)
	}

	var b strings.Builder
	b.WriteString(cli.TitleStyle.Render(fmt.Sprintf("%s Review duplicates (%d)", cli.SpiceIcon, len(m.records))))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if idx := m.table.Cursor(); idx >= 0 && idx < len(m.records) {
		b.WriteString(m.renderDetail(m.records[idx]))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}

func (m Model) renderDetail(r model.DuplicateRecord) string {
	lines := []string{
		cli.BoldStyle.Render("Incoming: ") + r.Transaction.Description,
		cli.BoldStyle.Render("Matched:  ") + r.MatchedDescription,
	}
	if name := r.Transaction.MerchantName(); name != "" {
		lines = append(lines, cli.BoldStyle.Render("Merchant: ")+name)
	}
	lines = append(lines, cli.SubtleStyle.Render(fmt.Sprintf("account %s, source %s, run %s",
		orDash(r.Transaction.AccountID), orDash(string(r.Transaction.Source)), r.RunID)))

	style := detailStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(strings.Join(lines, "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
