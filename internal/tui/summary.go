package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mdm/internal/report"
)

type SummaryRow struct {
	Label string
	Value string
	Warn  bool
}

// BatchRows lays out the totals of a finished run.
func BatchRows(batch report.Batch) []SummaryRow {
	var skipped int
	for _, item := range batch.Files {
		if item.Type == report.TypeSkip {
			skipped++
		}
	}
	failed := len(batch.Failed())

	return []SummaryRow{
		{Label: "Files", Value: fmt.Sprintf("%d", batch.Summary.Count)},
		{Label: "Skipped (exists)", Value: fmt.Sprintf("%d", skipped)},
		{Label: "Failed", Value: fmt.Sprintf("%d", failed), Warn: failed > 0},
		{Label: "Bytes in", Value: fmt.Sprintf("%d", batch.Summary.BytesIn)},
		{Label: "Bytes out", Value: fmt.Sprintf("%d", batch.Summary.BytesOut)},
		{Label: "Bytes removed", Value: fmt.Sprintf("%d", batch.Summary.BytesRemoved)},
	}
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		style := valueStyle
		if row.Warn {
			style = valueWarnStyle
		}
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), style.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle     = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	valueWarnStyle = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
)
