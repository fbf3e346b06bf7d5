package query

import (
	"encoding/json"

	"github.com/danpilch/kpstk/pkg/diff"
	"github.com/danpilch/kpstk/pkg/profile"
)

// Kind names a query.
type Kind string

const (
	KindInclusive   Kind = "inclusive"
	KindExclusive   Kind = "exclusive"
	KindCombined    Kind = "combined"
	KindInstruction Kind = "instruction"
	KindCallers     Kind = "callers"
	KindCallees     Kind = "callees"
)

// Order selects the sort column of the combined view.
type Order string

const (
	OrderInclusive Order = "inclusive"
	OrderExclusive Order = "exclusive"
)

// Share is a weight and its percentage of one profile's total.
type Share struct {
	Weight  int64   `json:"weight"`
	Percent float64 `json:"percent"`
	Present bool    `json:"present"`
}

func shareOf(p *profile.Profile, w int64, ok bool) Share {
	if !ok {
		return Share{}
	}
	return Share{Weight: w, Percent: p.Percent(w), Present: true}
}

// Row is one ranked result line.
type Row struct {
	Key string `json:"key"`
	// Path holds the frames of a caller or callee path, root to leaf.
	Path []string `json:"path,omitempty"`

	// Single profile mode.
	Share Share `json:"share"`
	// Exclusive is the second column of the combined view.
	Exclusive Share `json:"exclusive"`

	// Diff mode.
	Left     Share         `json:"left"`
	Right    Share         `json:"right"`
	Delta    float64       `json:"delta"`
	Severity diff.Severity `json:"severity,omitempty"`
}

// Target is the queried function's own weight in one profile.
type Target struct {
	Inclusive Share `json:"inclusive"`
	Exclusive Share `json:"exclusive"`
}

// Result is an ordered query answer.
type Result struct {
	Kind     Kind     `json:"kind"`
	Diff     bool     `json:"diff"`
	Names    []string `json:"profiles"`
	Totals   []int64  `json:"totals"`
	Function string   `json:"function,omitempty"`
	Depth    int      `json:"depth,omitempty"`
	Order    Order    `json:"order,omitempty"`
	Rows     []Row    `json:"rows"`

	// Recursive is set when the function recursed on an examined stack;
	// its weights are multiplied by the recursion depth on that stack.
	Recursive bool `json:"recursive,omitempty"`
	// Targets holds one entry per profile for callee queries.
	Targets []Target `json:"targets,omitempty"`
	Note    string   `json:"note,omitempty"`
}

type singleRow struct {
	Key   string   `json:"key"`
	Path  []string `json:"path,omitempty"`
	Share Share    `json:"share"`
}

type combinedRow struct {
	Key       string `json:"key"`
	Share     Share  `json:"share"`
	Exclusive Share  `json:"exclusive"`
}

type diffRow struct {
	Key      string        `json:"key"`
	Path     []string      `json:"path,omitempty"`
	Left     Share         `json:"left"`
	Right    Share         `json:"right"`
	Delta    float64       `json:"delta"`
	Severity diff.Severity `json:"severity"`
}

// MarshalJSON encodes each row with only the columns of the result's mode.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	rows := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		switch {
		case r.Kind == KindCombined:
			rows[i] = combinedRow{Key: row.Key, Share: row.Share, Exclusive: row.Exclusive}
		case r.Diff:
			rows[i] = diffRow{
				Key:      row.Key,
				Path:     row.Path,
				Left:     row.Left,
				Right:    row.Right,
				Delta:    row.Delta,
				Severity: row.Severity,
			}
		default:
			rows[i] = singleRow{Key: row.Key, Path: row.Path, Share: row.Share}
		}
	}
	return json.Marshal(struct {
		plain
		Rows []any `json:"rows"`
	}{plain(r), rows})
}
