package output

import (
	"fmt"
	"strings"

	"github.com/danpilch/kpstk/pkg/diff"
	"github.com/danpilch/kpstk/pkg/query"
)

// Summary counts diff rows per severity.
type Summary struct {
	Regressions  int `json:"regressions"`
	Improvements int `json:"improvements"`
	Moderate     int `json:"moderate"`
	Minor        int `json:"minor"`
	Unchanged    int `json:"unchanged"`
}

// Summarize counts the severities of the listed rows of a diff result.
func Summarize(res *query.Result) Summary {
	var s Summary
	for _, r := range res.Rows {
		switch r.Severity {
		case diff.SeverityRegress:
			s.Regressions++
		case diff.SeverityImprovement:
			s.Improvements++
		case diff.SeverityModerate:
			s.Moderate++
		case diff.SeverityMinor:
			s.Minor++
		default:
			s.Unchanged++
		}
	}
	return s
}

// renderSummary outputs the summary line of a diff table.
func (f *Formatter) renderSummary(s Summary) {
	parts := []string{}

	if s.Regressions > 0 {
		parts = append(parts, severityStyles[diff.SeverityRegress].Render(fmt.Sprintf("%d regressions", s.Regressions)))
	}
	if s.Improvements > 0 {
		parts = append(parts, severityStyles[diff.SeverityImprovement].Render(fmt.Sprintf("%d improvements", s.Improvements)))
	}
	if s.Moderate > 0 {
		parts = append(parts, severityStyles[diff.SeverityModerate].Render(fmt.Sprintf("%d moderate", s.Moderate)))
	}

	if len(parts) == 0 {
		fmt.Fprintln(f.writer, severityStyles[diff.SeverityImprovement].Render("No significant changes"))
	} else {
		fmt.Fprintf(f.writer, "Summary: %s\n", strings.Join(parts, ", "))
	}
}
