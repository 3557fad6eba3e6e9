package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

const descriptionWidth = 36

// RenderDedupSummary renders the stats of one deduplication run.
func RenderDedupSummary(title string, stats model.DedupStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Incoming transactions: %d\n", stats.Total)
	fmt.Fprintf(&b, "  • New: %s\n", SuccessStyle.Render(fmt.Sprint(stats.UniqueCount)))
	fmt.Fprintf(&b, "  • Duplicates (string match): %d\n", stats.Tier1Matches)
	fmt.Fprintf(&b, "  • Duplicates (verified %s): %d\n", RobotIcon, stats.Tier2Matches)
	fmt.Fprintf(&b, "  • Pairs sent for verification: %d\n", stats.Escalated)
	if stats.FailedBatches > 0 {
		fmt.Fprintf(&b, "  • %s\n", WarningStyle.Render(fmt.Sprintf("Failed verification batches: %d (kept as new)", stats.FailedBatches)))
	}
	fmt.Fprintf(&b, "  • Time taken: %dms", stats.ProcessingTimeMs())
	return RenderBox(title, b.String())
}

// RenderDuplicates renders dropped transactions next to the ledger rows they
// matched. A positive limit caps the number of rows shown.
func RenderDuplicates(duplicates []model.MatchResult, limit int) string {
	if len(duplicates) == 0 {
		return SubtleStyle.Render("No duplicates found.")
	}

	shown := duplicates
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	rows := make([][]string, 0, len(shown))
	for _, d := range shown {
		rows = append(rows, []string{
			d.Transaction.Date,
			truncate(d.Transaction.Description, descriptionWidth),
			truncate(d.MatchedWith.Description, descriptionWidth),
			d.Transaction.Amount.StringFixed(2),
			d.Tier.String(),
			fmt.Sprintf("%.2f", d.Confidence),
		})
	}

	out := newTable("Date", "Incoming", "Matched", "Amount", "Tier", "Conf").Rows(rows...).Render()
	if hidden := len(duplicates) - len(shown); hidden > 0 {
		out += "\n" + SubtleStyle.Render(fmt.Sprintf("… and %d more", hidden))
	}
	return out
}

// RenderRuns renders past dedup runs, newest first.
func RenderRuns(runs []model.DedupRun) string {
	if len(runs) == 0 {
		return SubtleStyle.Render("No dedup runs recorded yet.")
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			shortID(run.ID),
			string(run.Source),
			truncate(run.Label, 28),
			fmt.Sprint(run.Stats.Total),
			fmt.Sprint(run.Stats.UniqueCount),
			fmt.Sprint(run.Stats.Tier1Matches),
			fmt.Sprint(run.Stats.Tier2Matches),
			fmt.Sprint(run.Stats.FailedBatches),
		})
	}
	return newTable("When", "Run", "Source", "Label", "Total", "New", "Tier 1", "Tier 2", "Failed").Rows(rows...).Render()
}

// RenderDuplicateRecord renders one stored duplicate for review prompts.
func RenderDuplicateRecord(record model.DuplicateRecord) string {
	tx := record.Transaction
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", BoldStyle.Render("Incoming:"), tx.Description)
	fmt.Fprintf(&b, "%s  %s\n", BoldStyle.Render("Matched: "), record.MatchedDescription)
	fmt.Fprintf(&b, "%s  %s on %s", BoldStyle.Render("Amount:  "), tx.Amount.StringFixed(2), tx.Date)
	fmt.Fprintf(&b, "\n%s %s", SubtleStyle.Render(fmt.Sprintf("%s match, confidence %.2f,", record.Tier, record.Confidence)),
		StatusStyle(record.Status).Render(string(record.Status)))
	return BoxStyle.Render(b.String())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.BorderBottom(false)
			}
			return TableCellStyle
		})
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
