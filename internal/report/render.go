package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#00FF00"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 1)
)

// maxListedIssues bounds how many issues the terminal summary prints.
const maxListedIssues = 10

// RenderTerminal formats the report for a human at a terminal.
func RenderTerminal(r *Report) string {
	var rows []string
	rows = append(rows, titleStyle.Render(fmt.Sprintf("Merge run %s (%s)", r.RunID, r.Mode)))

	row := func(label string, value int, style lipgloss.Style) {
		rows = append(rows, labelStyle.Render(fmt.Sprintf("%-22s", label))+style.Render(fmt.Sprintf("%d", value)))
	}
	countStyle := func(n int, bad lipgloss.Style) lipgloss.Style {
		if n == 0 {
			return okStyle
		}
		return bad
	}

	row("segments", r.Stats.Segments, okStyle)
	row("base pages", r.BasePages, okStyle)
	if r.HintsTotal > 0 {
		row("placements resolved", r.PlacementsResolved, okStyle)
		row("duplicates skipped", r.Count(DuplicateSkipped), countStyle(r.Count(DuplicateSkipped), warnStyle))
		row("anchors clamped", r.Count(AnchorClamped), countStyle(r.Count(AnchorClamped), warnStyle))
	}
	if r.TagsTotal > 0 {
		row("tags used", r.TagsUsed, okStyle)
		row("empty ranges skipped", r.Count(EmptyRangeSkipped), countStyle(r.Count(EmptyRangeSkipped), warnStyle))
	}
	row("input validation", r.Count(InputValidation), countStyle(r.Count(InputValidation), failStyle))
	row("resolution failures", r.Count(ResolutionFailure), countStyle(r.Count(ResolutionFailure), failStyle))
	if n := r.Count(OracleFailure); n > 0 {
		row("oracle failures", n, failStyle)
	}
	row("invalid tag ranges", r.InvalidRanges, countStyle(r.InvalidRanges, failStyle))
	row("overlapping ranges", r.Overlaps, countStyle(r.Overlaps, warnStyle))
	row("untagged lines", r.CoverageGaps, countStyle(r.CoverageGaps, warnStyle))
	rows = append(rows, labelStyle.Render(fmt.Sprintf("%-22s", "text length"))+fmt.Sprintf("%d", r.Stats.TextLength))

	if len(r.Stats.ByYear) > 0 {
		rows = append(rows, "", titleStyle.Render("By year"))
		for _, c := range r.Stats.ByYear {
			rows = append(rows, fmt.Sprintf("  %-20s %d", c.Label, c.N))
		}
	}
	if len(r.Stats.ByLocation) > 0 {
		rows = append(rows, "", titleStyle.Render("By location"))
		for _, c := range r.Stats.ByLocation {
			rows = append(rows, fmt.Sprintf("  %-20s %d", c.Label, c.N))
		}
	}
	if len(r.Stats.ByConfidence) > 0 {
		rows = append(rows, "", titleStyle.Render("By confidence"))
		for _, c := range r.Stats.ByConfidence {
			rows = append(rows, fmt.Sprintf("  %-20s %d", c.Label, c.N))
		}
	}

	if len(r.Issues) > 0 {
		rows = append(rows, "", titleStyle.Render("Issues"))
		for i, issue := range r.Issues {
			if i == maxListedIssues {
				rows = append(rows, labelStyle.Render(fmt.Sprintf("  ... and %d more", len(r.Issues)-maxListedIssues)))
				break
			}
			style := warnStyle
			if issue.Kind == InputValidation || issue.Kind == ResolutionFailure || issue.Kind == OracleFailure {
				style = failStyle
			}
			rows = append(rows, style.Render("  "+issue.String()))
		}
	}

	return boxStyle.Render(strings.Join(rows, "\n"))
}
