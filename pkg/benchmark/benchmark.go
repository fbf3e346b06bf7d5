// Package benchmark measures how long traces take to parse and aggregate,
// and what that costs in allocations.
package benchmark

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/trace"
)

// Options configures a benchmark run.
type Options struct {
	Iterations int
	Warmup     int
	Trace      trace.Options
}

// DefaultOptions returns sensible benchmark defaults.
func DefaultOptions() Options {
	return Options{
		Iterations: 10,
		Warmup:     1,
		Trace:      trace.DefaultOptions(),
	}
}

// Result holds benchmark results for a single trace.
type Result struct {
	Trace     string
	Samples   int
	Latencies []time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
}

// Throughput returns samples aggregated per second at the median latency.
func (r Result) Throughput() float64 {
	if r.P50 <= 0 {
		return 0
	}
	return float64(r.Samples) / r.P50.Seconds()
}

// Overhead holds the memory cost of a benchmark run.
type Overhead struct {
	AllocBytes uint64
	AllocCount uint64
	GCPauses   uint32
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	valueStyle  = lipgloss.NewStyle().Bold(true)
)

// Run loads each trace opts.Iterations times after opts.Warmup untimed
// loads. The overhead covers the whole run.
func Run(ctx context.Context, paths []string, opts Options, logger *logrus.Logger) ([]Result, Overhead, error) {
	if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	before := readMemStats()

	var results []Result
	for _, path := range paths {
		for range opts.Warmup {
			if _, err := profile.Load(ctx, path, opts.Trace, logger); err != nil {
				return nil, Overhead{}, err
			}
		}

		latencies := make([]time.Duration, opts.Iterations)
		var samples int
		for i := range latencies {
			start := time.Now()
			p, err := profile.Load(ctx, path, opts.Trace, logger)
			if err != nil {
				return nil, Overhead{}, err
			}
			latencies[i] = time.Since(start)
			samples = p.Samples()
		}

		slices.Sort(latencies)
		results = append(results, Result{
			Trace:     path,
			Samples:   samples,
			Latencies: latencies,
			P50:       percentile(latencies, 0.50),
			P95:       percentile(latencies, 0.95),
			P99:       percentile(latencies, 0.99),
		})
	}

	after := readMemStats()
	return results, Overhead{
		AllocBytes: after.TotalAlloc - before.TotalAlloc,
		AllocCount: after.Mallocs - before.Mallocs,
		GCPauses:   after.NumGC - before.NumGC,
	}, nil
}

func readMemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// RenderResults writes one table row per trace followed by the run's
// allocation overhead.
func RenderResults(w io.Writer, results []Result, overhead Overhead) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("TRACE", "SAMPLES", "P50", "P95", "P99", "SAMPLES/S").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range results {
		t.Row(r.Trace, humanize.Comma(int64(r.Samples)),
			r.P50.String(), r.P95.String(), r.P99.String(),
			humanize.Comma(int64(r.Throughput())))
	}

	fmt.Fprintln(w, titleStyle.Render("Trace Load Benchmark"))
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "allocated %s in %s allocations, %d GC cycles\n",
		valueStyle.Render(humanize.IBytes(overhead.AllocBytes)),
		valueStyle.Render(humanize.Comma(int64(overhead.AllocCount))),
		overhead.GCPauses)
}

// percentile returns the nearest-rank percentile of an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(n)))
	return sorted[min(max(rank, 1), n)-1]
}
