// Package rank orders weighted keys for reporting.
package rank

import (
	"cmp"
	"iter"
	"slices"
)

// Number is a weight or a delta.
type Number interface {
	~int64 | ~float64
}

// Entry is one ranked key.
type Entry[K cmp.Ordered, V Number] struct {
	Key   K
	Value V
}

// Top collects seq ordered by value descending, ties broken by key
// ascending, and keeps the first limit entries. limit <= 0 keeps all.
func Top[K cmp.Ordered, V Number](seq iter.Seq2[K, V], limit int) []Entry[K, V] {
	return TopFunc(seq, limit, func(K) bool { return true })
}

// TopFunc is like Top but only considers keys accepted by keep.
func TopFunc[K cmp.Ordered, V Number](seq iter.Seq2[K, V], limit int, keep func(K) bool) []Entry[K, V] {
	var entries []Entry[K, V]
	for k, v := range seq {
		if keep(k) {
			entries = append(entries, Entry[K, V]{Key: k, Value: v})
		}
	}

	slices.SortFunc(entries, func(a, b Entry[K, V]) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
