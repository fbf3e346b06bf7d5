// Package query answers ranked questions about one profile, or about the
// difference between two.
//
// With one profile every list is ranked by weight. With two profiles the
// query runs in diff mode: lists are ranked by the change in share from
// the first profile to the second, in percentage points.
package query

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"sync"

	"github.com/danpilch/kpstk/pkg/callgraph"
	"github.com/danpilch/kpstk/pkg/diff"
	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/rank"
	"github.com/danpilch/kpstk/pkg/trace"
)

// ErrProfileCount is returned when a query is built from other than one
// or two profiles.
var ErrProfileCount = errors.New("query needs one or two profiles")

// Query is bound to one profile or an ordered pair. Diff maps are computed
// on first use and cached for the lifetime of the Query; it is safe for
// concurrent use.
type Query struct {
	left  *profile.Profile
	right *profile.Profile

	mu        sync.Mutex
	inclDiff  diff.Map[trace.FunctionID]
	exclDiff  diff.Map[trace.FunctionID]
	instDiff  diff.Map[trace.InstructionID]
	diffCalls int
}

// New binds a query to one profile, or to two for diff mode.
func New(profiles ...*profile.Profile) (*Query, error) {
	switch len(profiles) {
	case 1:
		return &Query{left: profiles[0]}, nil
	case 2:
		return &Query{left: profiles[0], right: profiles[1]}, nil
	}
	return nil, fmt.Errorf("%w, got %d", ErrProfileCount, len(profiles))
}

// Diff reports whether the query compares two profiles.
func (q *Query) Diff() bool {
	return q.right != nil
}

// Profiles returns the bound profiles in order.
func (q *Query) Profiles() []*profile.Profile {
	if q.right == nil {
		return []*profile.Profile{q.left}
	}
	return []*profile.Profile{q.left, q.right}
}

func (q *Query) newResult(kind Kind) *Result {
	res := &Result{Kind: kind, Diff: q.Diff()}
	for _, p := range q.Profiles() {
		res.Names = append(res.Names, p.Name())
		res.Totals = append(res.Totals, p.Total())
	}
	return res
}

// cached returns the memoized diff map, computing it on first use.
func cached[K comparable](q *Query, slot *diff.Map[K], weights func(*profile.Profile) iter.Seq2[K, int64]) (diff.Map[K], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if *slot != nil {
		return *slot, nil
	}
	m, err := diff.Compute(
		diff.Side[K]{Weights: weights(q.left), Total: q.left.Total()},
		diff.Side[K]{Weights: weights(q.right), Total: q.right.Total()},
	)
	if err != nil {
		return nil, err
	}
	q.diffCalls++
	*slot = m
	return m, nil
}

func (q *Query) inclusiveDiff() (diff.Map[trace.FunctionID], error) {
	return cached(q, &q.inclDiff, (*profile.Profile).InclusiveWeights)
}

func (q *Query) exclusiveDiff() (diff.Map[trace.FunctionID], error) {
	return cached(q, &q.exclDiff, (*profile.Profile).ExclusiveWeights)
}

func (q *Query) instructionDiff() (diff.Map[trace.InstructionID], error) {
	return cached(q, &q.instDiff, (*profile.Profile).InstructionWeights)
}

// metric describes one aggregate of a profile for ranking.
type metric[K ~string] struct {
	weights func(*profile.Profile) iter.Seq2[K, int64]
	lookup  func(*profile.Profile, K) (int64, bool)
	diff    func() (diff.Map[K], error)
}

func ranked[K ~string](q *Query, res *Result, m metric[K], limit int, keep func(K) bool) (*Result, error) {
	if !q.Diff() {
		for _, e := range rank.TopFunc(m.weights(q.left), limit, keep) {
			res.Rows = append(res.Rows, Row{
				Key:   string(e.Key),
				Share: shareOf(q.left, e.Value, true),
			})
		}
		return res, nil
	}

	d, err := m.diff()
	if err != nil {
		return nil, err
	}
	for _, e := range rank.TopFunc(maps.All(d), limit, keep) {
		lw, lok := m.lookup(q.left, e.Key)
		rw, rok := m.lookup(q.right, e.Key)
		res.Rows = append(res.Rows, Row{
			Key:      string(e.Key),
			Left:     shareOf(q.left, lw, lok),
			Right:    shareOf(q.right, rw, rok),
			Delta:    e.Value,
			Severity: diff.Classify(e.Value),
		})
	}
	return res, nil
}

func all[K any](K) bool { return true }

func (q *Query) inclusiveMetric() metric[trace.FunctionID] {
	return metric[trace.FunctionID]{
		weights: (*profile.Profile).InclusiveWeights,
		lookup:  (*profile.Profile).Inclusive,
		diff:    q.inclusiveDiff,
	}
}

func (q *Query) exclusiveMetric() metric[trace.FunctionID] {
	return metric[trace.FunctionID]{
		weights: (*profile.Profile).ExclusiveWeights,
		lookup:  (*profile.Profile).Exclusive,
		diff:    q.exclusiveDiff,
	}
}

// Inclusive ranks functions by inclusive weight. limit <= 0 returns all.
func (q *Query) Inclusive(limit int) (*Result, error) {
	return ranked(q, q.newResult(KindInclusive), q.inclusiveMetric(), limit, all[trace.FunctionID])
}

// Exclusive ranks functions by exclusive weight.
func (q *Query) Exclusive(limit int) (*Result, error) {
	return ranked(q, q.newResult(KindExclusive), q.exclusiveMetric(), limit, all[trace.FunctionID])
}

// Combined lists inclusive and exclusive weight side by side, sorted by
// the chosen column. It always reports on the first profile: in diff mode
// the second one is ignored and Result.Note says so.
func (q *Query) Combined(order Order, limit int) (*Result, error) {
	p := q.left
	res := &Result{
		Kind:   KindCombined,
		Names:  []string{p.Name()},
		Totals: []int64{p.Total()},
		Order:  order,
	}
	if q.Diff() {
		res.Note = fmt.Sprintf("combined view shows %s only", p.Name())
	}

	weights := p.InclusiveWeights()
	if order == OrderExclusive {
		weights = p.ExclusiveWeights()
	}
	for _, e := range rank.Top(weights, limit) {
		in, inOK := p.Inclusive(e.Key)
		ex, exOK := p.Exclusive(e.Key)
		res.Rows = append(res.Rows, Row{
			Key:       string(e.Key),
			Share:     shareOf(p, in, inOK),
			Exclusive: shareOf(p, ex, exOK),
		})
	}
	return res, nil
}

// known fails with callgraph.ErrUnknownFunction unless fn was sampled in
// at least one bound profile.
func (q *Query) known(fn trace.FunctionID) error {
	for _, p := range q.Profiles() {
		if p.Has(fn) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", callgraph.ErrUnknownFunction, fn)
}

// Instructions ranks the sampled instruction sites inside fn.
func (q *Query) Instructions(fn trace.FunctionID, limit int) (*Result, error) {
	if err := q.known(fn); err != nil {
		return nil, err
	}
	res := q.newResult(KindInstruction)
	res.Function = string(fn)

	m := metric[trace.InstructionID]{
		weights: (*profile.Profile).InstructionWeights,
		lookup:  (*profile.Profile).Instruction,
		diff:    q.instructionDiff,
	}
	return ranked(q, res, m, limit, func(id trace.InstructionID) bool {
		return id.Function() == fn
	})
}

// Callers ranks the call paths leading to fn, up to depth calling frames.
func (q *Query) Callers(fn trace.FunctionID, depth, limit int) (*Result, error) {
	if depth < 1 {
		depth = callgraph.DefaultDepth
	}
	res := q.newResult(KindCallers)
	res.Function = string(fn)
	res.Depth = depth

	return q.navigate(res, limit, func(p *profile.Profile) (*callgraph.Result, error) {
		return callgraph.Callers(p, fn, depth)
	})
}

// Callees ranks the functions fn calls directly. Result.Targets holds the
// inclusive and exclusive weight of fn itself per profile.
func (q *Query) Callees(fn trace.FunctionID, limit int) (*Result, error) {
	res := q.newResult(KindCallees)
	res.Function = string(fn)

	res, err := q.navigate(res, limit, func(p *profile.Profile) (*callgraph.Result, error) {
		return callgraph.Callees(p, fn)
	})
	if err != nil {
		return nil, err
	}
	for _, p := range q.Profiles() {
		in, inOK := p.Inclusive(fn)
		ex, exOK := p.Exclusive(fn)
		res.Targets = append(res.Targets, Target{
			Inclusive: shareOf(p, in, inOK),
			Exclusive: shareOf(p, ex, exOK),
		})
	}
	return res, nil
}

type navigator func(*profile.Profile) (*callgraph.Result, error)

func (q *Query) navigate(res *Result, limit int, nav navigator) (*Result, error) {
	fn := trace.FunctionID(res.Function)
	if err := q.known(fn); err != nil {
		return nil, err
	}

	// In diff mode a function sampled in only one profile has no paths in
	// the other.
	sides := make([]*callgraph.Result, 0, 2)
	for _, p := range q.Profiles() {
		r, err := nav(p)
		if errors.Is(err, callgraph.ErrUnknownFunction) {
			r, err = callgraph.Empty(fn), nil
		}
		if err != nil {
			return nil, err
		}
		res.Recursive = res.Recursive || r.Recursive()
		sides = append(sides, r)
	}

	path := func(k callgraph.PathKey) []string {
		for _, s := range sides {
			if frames, ok := s.Paths[k]; ok {
				out := make([]string, len(frames))
				for i, f := range frames {
					out[i] = string(f)
				}
				return out
			}
		}
		return nil
	}

	if !q.Diff() {
		for _, e := range rank.Top(maps.All(sides[0].Weights), limit) {
			res.Rows = append(res.Rows, Row{
				Key:   string(e.Key),
				Path:  path(e.Key),
				Share: shareOf(q.left, e.Value, true),
			})
		}
		return res, nil
	}

	left, right := sides[0], sides[1]
	d, err := diff.Compute(
		diff.Side[callgraph.PathKey]{Weights: maps.All(left.Weights), Total: q.left.Total()},
		diff.Side[callgraph.PathKey]{Weights: maps.All(right.Weights), Total: q.right.Total()},
	)
	if err != nil {
		return nil, err
	}
	for _, e := range rank.Top(maps.All(d), limit) {
		lw, lok := left.Weights[e.Key]
		rw, rok := right.Weights[e.Key]
		res.Rows = append(res.Rows, Row{
			Key:      string(e.Key),
			Path:     path(e.Key),
			Left:     shareOf(q.left, lw, lok),
			Right:    shareOf(q.right, rw, rok),
			Delta:    e.Value,
			Severity: diff.Classify(e.Value),
		})
	}
	return res, nil
}
