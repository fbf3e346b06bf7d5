// Package diff computes percentage-point differences between two traces.
package diff

import (
	"errors"
	"iter"
)

// ErrInvalidProfile is returned when a side has no sampled weight, so no
// percentage can be formed.
var ErrInvalidProfile = errors.New("profile has zero total weight")

// Side is one trace's view of an aggregate: its weights and the trace
// total they are relative to.
type Side[K comparable] struct {
	Weights iter.Seq2[K, int64]
	Total   int64
}

// Map holds, per key, the change in share of total weight going from the
// left trace to the right one, in percentage points.
type Map[K comparable] map[K]float64

// Compute returns 100*r/R - 100*l/L for every key. A key missing on one
// side counts as zero weight there, so left-only keys are negative and
// right-only keys positive. Inputs are not modified.
func Compute[K comparable](left, right Side[K]) (Map[K], error) {
	if left.Total == 0 || right.Total == 0 {
		return nil, ErrInvalidProfile
	}

	out := make(Map[K])
	for k, w := range left.Weights {
		out[k] = -percent(w, left.Total)
	}
	for k, w := range right.Weights {
		out[k] += percent(w, right.Total)
	}
	return out, nil
}

func percent(w, total int64) float64 {
	return 100 * float64(w) / float64(total)
}
