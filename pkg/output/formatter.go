// Package output renders query results and the open-file table.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/danpilch/kpstk/pkg/diff"
	"github.com/danpilch/kpstk/pkg/query"
)

// Format represents the output format type.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatTSV   Format = "tsv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatTSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or tsv)", s)
}

const barWidth = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	severityStyles = map[diff.Severity]lipgloss.Style{
		diff.SeverityNone:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		diff.SeverityMinor:       lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		diff.SeverityModerate:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		diff.SeverityRegress:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		diff.SeverityImprovement: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
)

// Formatter handles output formatting.
type Formatter struct {
	format    Format
	writer    io.Writer
	width     int
	showBars  bool
	showHints bool
}

// NewFormatter creates a new formatter. The table width follows the
// terminal when writer is one.
func NewFormatter(format Format, writer io.Writer) *Formatter {
	return &Formatter{
		format:   format,
		writer:   writer,
		width:    Width(writer),
		showBars: true,
	}
}

// SetWidth overrides the detected terminal width.
func (f *Formatter) SetWidth(width int) {
	if width > 0 {
		f.width = width
	}
}

// SetShowBars toggles the share bar column of single-profile tables.
func (f *Formatter) SetShowBars(show bool) {
	f.showBars = show
}

// SetShowHints enables suggested follow-up queries under tables.
func (f *Formatter) SetShowHints(show bool) {
	f.showHints = show
}

// Render outputs a query result in the configured format.
func (f *Formatter) Render(res *query.Result) error {
	switch f.format {
	case FormatJSON:
		return f.renderJSON(res)
	case FormatTSV:
		return f.renderTSV(res)
	default:
		return f.renderTable(res)
	}
}

func (f *Formatter) renderJSON(v any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// layout describes the columns of one result kind.
type layout struct {
	headers []string
	cells   func(r query.Row, plain bool) []string
}

func (f *Formatter) layoutFor(res *query.Result, plain bool) layout {
	switch {
	case res.Diff:
		return layout{
			headers: []string{"BEFORE", "AFTER", "DELTA", "SEVERITY", nameHeader(res.Kind)},
			cells: func(r query.Row, plain bool) []string {
				return []string{
					formatPercent(r.Left, plain),
					formatPercent(r.Right, plain),
					formatDelta(r.Delta, plain),
					string(r.Severity),
					rowName(r),
				}
			},
		}

	case res.Kind == query.KindCombined:
		return layout{
			headers: []string{"INCLUSIVE", "INCL %", "EXCLUSIVE", "EXCL %", nameHeader(res.Kind)},
			cells: func(r query.Row, plain bool) []string {
				return []string{
					formatWeight(r.Share, plain),
					formatPercent(r.Share, plain),
					formatWeight(r.Exclusive, plain),
					formatPercent(r.Exclusive, plain),
					rowName(r),
				}
			},
		}
	}

	bars := f.showBars && !plain
	headers := []string{"WEIGHT", "PERCENT"}
	if bars {
		headers = append(headers, "SHARE")
	}
	headers = append(headers, nameHeader(res.Kind))
	return layout{
		headers: headers,
		cells: func(r query.Row, plain bool) []string {
			row := []string{formatWeight(r.Share, plain), formatPercent(r.Share, plain)}
			if bars {
				row = append(row, Bar(r.Share.Percent, barWidth))
			}
			return append(row, rowName(r))
		},
	}
}

func nameHeader(kind query.Kind) string {
	switch kind {
	case query.KindInstruction:
		return "INSTRUCTION"
	case query.KindCallers, query.KindCallees:
		return "PATH"
	}
	return "FUNCTION"
}

// rowName prints navigator paths root to leaf so the queried function's
// callers read left to right.
func rowName(r query.Row) string {
	if len(r.Path) > 0 {
		return strings.Join(r.Path, " > ")
	}
	return r.Key
}

func formatWeight(s query.Share, plain bool) string {
	if !s.Present {
		return "-"
	}
	if plain {
		return fmt.Sprintf("%d", s.Weight)
	}
	return humanize.Comma(s.Weight)
}

func formatPercent(s query.Share, plain bool) string {
	if !s.Present {
		return "-"
	}
	if plain {
		return fmt.Sprintf("%.4f", s.Percent)
	}
	return fmt.Sprintf("%.2f%%", s.Percent)
}

func formatDelta(d float64, plain bool) string {
	if plain {
		return fmt.Sprintf("%.4f", d)
	}
	return fmt.Sprintf("%+.2f", d)
}

func title(res *query.Result) string {
	switch res.Kind {
	case query.KindInclusive:
		return "Inclusive weight"
	case query.KindExclusive:
		return "Exclusive weight"
	case query.KindCombined:
		return fmt.Sprintf("Inclusive and exclusive weight, by %s", res.Order)
	case query.KindInstruction:
		return "Instructions in " + res.Function
	case query.KindCallers:
		return fmt.Sprintf("Callers of %s (depth %d)", res.Function, res.Depth)
	case query.KindCallees:
		return "Callees of " + res.Function
	}
	return string(res.Kind)
}

func subtitle(res *query.Result) string {
	parts := make([]string, len(res.Names))
	for i, name := range res.Names {
		parts[i] = fmt.Sprintf("%s (total %s)", name, humanize.Comma(res.Totals[i]))
	}
	if res.Diff {
		return strings.Join(parts, " -> ") + ", delta in percentage points"
	}
	return strings.Join(parts, ", ")
}

// renderTable outputs a result as a styled table.
func (f *Formatter) renderTable(res *query.Result) error {
	fmt.Fprintln(f.writer, titleStyle.Render(title(res)))
	fmt.Fprintln(f.writer, dimStyle.Render(subtitle(res)))
	f.renderTargets(res)
	fmt.Fprintln(f.writer)

	if len(res.Rows) == 0 {
		fmt.Fprintln(f.writer, dimStyle.Render("(no samples)"))
		f.renderNotes(res)
		return nil
	}

	l := f.layoutFor(res, false)
	nameMax := f.nameWidth(len(l.headers))
	rows := make([][]string, len(res.Rows))
	for i, r := range res.Rows {
		cells := l.cells(r, false)
		cells[len(cells)-1] = Truncate(cells[len(cells)-1], nameMax)
		rows[i] = cells
	}

	sevCol := -1
	if res.Diff {
		sevCol = 3
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == sevCol && row >= 0 && row < len(res.Rows) {
				return severityStyles[res.Rows[row].Severity].Padding(0, 1)
			}
			return cellStyle
		}).
		Headers(l.headers...).
		Rows(rows...)

	fmt.Fprintln(f.writer, t)
	if res.Diff {
		fmt.Fprintln(f.writer)
		f.renderSummary(Summarize(res))
	}
	f.renderNotes(res)
	if f.showHints {
		f.renderSuggestions(res)
	}
	return nil
}

// renderTargets prints the callee query's own function weight per profile.
func (f *Formatter) renderTargets(res *query.Result) {
	for i, t := range res.Targets {
		name := res.Function
		if len(res.Names) > 1 {
			name = fmt.Sprintf("%s in %s", res.Function, res.Names[i])
		}
		if !t.Inclusive.Present {
			fmt.Fprintf(f.writer, "%s: not sampled\n", name)
			continue
		}
		fmt.Fprintf(f.writer, "%s: inclusive %s (%s), exclusive %s (%s)\n", name,
			formatWeight(t.Inclusive, false), formatPercent(t.Inclusive, false),
			formatWeight(t.Exclusive, false), formatPercent(t.Exclusive, false))
	}
}

func (f *Formatter) renderNotes(res *query.Result) {
	if res.Recursive {
		fmt.Fprintln(f.writer, noteStyle.Render(fmt.Sprintf(
			"note: %s is recursive; its weights are multiplied by the recursion depth", res.Function)))
	}
	if res.Note != "" {
		fmt.Fprintln(f.writer, noteStyle.Render("note: "+res.Note))
	}
}

// nameWidth is the room left for the name column once the numeric columns
// and borders are laid out.
func (f *Formatter) nameWidth(columns int) int {
	w := f.width - (columns-1)*14 - 4
	if w < 24 {
		w = 24
	}
	return w
}

// renderTSV outputs a header line and one tab separated line per row.
// Numbers are unformatted.
func (f *Formatter) renderTSV(res *query.Result) error {
	l := f.layoutFor(res, true)
	if _, err := fmt.Fprintln(f.writer, strings.Join(l.headers, "\t")); err != nil {
		return err
	}
	for _, r := range res.Rows {
		if _, err := fmt.Fprintln(f.writer, strings.Join(l.cells(r, true), "\t")); err != nil {
			return err
		}
	}
	return nil
}
