package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/facetcrawl/partition"
	"github.com/lukemcguire/facetcrawl/result"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	successStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	reasonStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	cellStyle      = lipgloss.NewStyle()
	lostErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// reasonOrder is the display order for abort reasons, most actionable first.
var reasonOrder = []partition.AbortReason{
	partition.ReasonFetchFailure,
	partition.ReasonMalformedCount,
	partition.ReasonInventoryMismatch,
	partition.ReasonOverCapacity,
}

// RenderSummary produces a Lip Gloss styled summary of the crawl report.
func RenderSummary(r *result.Report) string {
	if r == nil {
		return errorStyle.Render("No report available.")
	}

	var builder strings.Builder

	switch {
	case r.Complete():
		builder.WriteString(successStyle.Render(fmt.Sprintf("Collected all %d listings", r.Emitted)))
	case r.Canceled:
		builder.WriteString(warnStyle.Render(fmt.Sprintf("Crawl canceled after %d listings", r.Emitted)))
	default:
		builder.WriteString(warnStyle.Render(fmt.Sprintf("Collected %d listings, about %d missing", r.Emitted, max(r.LossEstimate, 0))))
	}
	builder.WriteString("\n\n")

	builder.WriteString(statsTable(r).Render())
	builder.WriteString("\n\n")

	grouped := make(map[string][]result.AbortRecord)
	for _, a := range r.Aborts {
		grouped[a.Reason] = append(grouped[a.Reason], a)
	}

	for _, reason := range reasonOrder {
		aborts := grouped[string(reason)]
		if len(aborts) == 0 {
			continue
		}

		builder.WriteString(reasonStyle.Render(fmt.Sprintf("## %s (%d)", reason, len(aborts))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(aborts))
		for _, a := range aborts {
			lost := "unknown"
			if a.Known {
				lost = strconv.Itoa(a.Lost)
			}
			cause := a.Error
			if a.Category != "" {
				cause = fmt.Sprintf("%s: %s", result.FormatCategory(a.Category), a.Error)
			}
			rows = append(rows, []string{a.Query, lost, cause})
		}

		abortTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Query", "Lost", "Cause").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 {
					return lostErrorStyle
				}
				return cellStyle
			}).
			Rows(rows...)

		builder.WriteString(abortTable.Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"%d listings emitted, %d observed at most, loss estimate %d (%s)",
		r.Emitted, r.MaxObserved, r.LossEstimate, r.Duration.Round(time.Millisecond),
	)))
	builder.WriteString("\n")

	return builder.String()
}

func statsTable(r *result.Report) *table.Table {
	rows := [][]string{
		{"Pages fetched", strconv.Itoa(r.Pages)},
		{"Failed pages", strconv.Itoa(r.FailedPages)},
		{"Walks", strconv.Itoa(r.Walks)},
		{"Exact splits", strconv.Itoa(r.ExactSplits)},
		{"Approximate splits", strconv.Itoa(r.ApproxSplits)},
		{"Max depth", strconv.Itoa(r.MaxDepth)},
		{"Duplicates dropped", strconv.FormatInt(r.Duplicates, 10)},
		{"Unextracted listings", strconv.Itoa(r.ParseFailures)},
		{"Unsaved listings", strconv.FormatInt(r.Unsaved, 10)},
		{"Throttled (429)", strconv.Itoa(r.Throttles)},
		{"Final rate (req/s)", strconv.Itoa(r.FinalRate)},
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return dimStyle
			}
			return cellStyle
		}).
		Rows(rows...)
}
