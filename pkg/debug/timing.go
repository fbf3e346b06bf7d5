package debug

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/danpilch/kpstk/pkg/session"
)

var (
	debugTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	debugHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	debugDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// LoadTiming records how long one trace took to parse and aggregate.
type LoadTiming struct {
	Path     string
	Samples  int
	Duration time.Duration
}

// Timings collects the load timings of the opened traces.
func Timings(entries []*session.Entry) []LoadTiming {
	out := make([]LoadTiming, len(entries))
	for i, e := range entries {
		out[i] = LoadTiming{
			Path:     e.Path,
			Samples:  e.Profile.Samples(),
			Duration: e.Elapsed,
		}
	}
	return out
}

// TimingReport prints a styled timing summary for the loaded traces.
// Traces load in parallel, so the total is CPU time rather than wall time.
func TimingReport(w io.Writer, timings []LoadTiming) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, debugTitle.Render("Trace Load Timing Report"))
	fmt.Fprintln(w, debugDim.Render(strings.Repeat("═", 60)))
	fmt.Fprintf(w, "  %s  %s  %s\n",
		debugHeader.Render("TRACE                         "),
		debugHeader.Render("SAMPLES     "),
		debugHeader.Render("DURATION    "))
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 60)))

	var total time.Duration
	var samples int
	for _, t := range timings {
		fmt.Fprintf(w, "  %-32s %-14s %v\n", t.Path, humanize.Comma(int64(t.Samples)), t.Duration)
		total += t.Duration
		samples += t.Samples
	}
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 60)))
	fmt.Fprintf(w, "  %-32s %-14s %v\n",
		lipgloss.NewStyle().Bold(true).Render("TOTAL"), humanize.Comma(int64(samples)), total)
}
