// Package callgraph reconstructs caller chains and callee transitions of a
// function from a profile's folded stacks.
package callgraph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/trace"
)

const (
	// BottomOfStack marks a caller path whose function was the stack root.
	BottomOfStack trace.FunctionID = "bottom_of_stack"
	// TopOfStack marks a callee path whose function was itself executing.
	TopOfStack trace.FunctionID = "top_of_stack"

	DefaultDepth = 1
)

// ErrUnknownFunction is returned for a function that never appears on a
// sampled stack.
var ErrUnknownFunction = errors.New("function not found")

// PathKey is a caller or callee path joined by profile.Separator.
type PathKey string

// Result maps caller or callee paths of one function to their weights.
type Result struct {
	Function trace.FunctionID
	Weights  map[PathKey]int64
	// Paths holds the frames of every key, root to leaf.
	Paths map[PathKey][]trace.FunctionID
	// RecursiveStacks counts examined stacks on which Function occurs more
	// than once. Their weights are multiplied by the occurrence count.
	RecursiveStacks int
}

// Recursive reports whether Function recursed on any examined stack.
func (r *Result) Recursive() bool {
	return r.RecursiveStacks > 0
}

// Empty returns a result with no paths.
func Empty(fn trace.FunctionID) *Result {
	return &Result{
		Function: fn,
		Weights:  make(map[PathKey]int64),
		Paths:    make(map[PathKey][]trace.FunctionID),
	}
}

func (r *Result) add(path []trace.FunctionID, weight int64) {
	parts := make([]string, len(path))
	for i, f := range path {
		parts[i] = string(f)
	}
	key := PathKey(strings.Join(parts, profile.Separator))
	if _, ok := r.Paths[key]; !ok {
		r.Paths[key] = slices.Clone(path)
	}
	r.Weights[key] += weight
}

// Callers returns, for every stack containing fn, the path made of up to
// depth frames calling fn followed by fn itself. Stacks rooted at fn map
// to BottomOfStack+fn. A depth below 1 means DefaultDepth.
func Callers(p *profile.Profile, fn trace.FunctionID, depth int) (*Result, error) {
	if depth < 1 {
		depth = DefaultDepth
	}
	return walk(p, fn, func(frames []trace.FunctionID, i int) []trace.FunctionID {
		if i == 0 {
			return []trace.FunctionID{BottomOfStack, fn}
		}
		return frames[max(0, i-depth) : i+1]
	})
}

// Callees returns, for every stack containing fn, the transition from fn
// to the frame it called. Stacks where fn is the leaf map to TopOfStack,
// whose weight equals the exclusive weight of fn absent recursion.
func Callees(p *profile.Profile, fn trace.FunctionID) (*Result, error) {
	return walk(p, fn, func(frames []trace.FunctionID, i int) []trace.FunctionID {
		if i == len(frames)-1 {
			return []trace.FunctionID{TopOfStack}
		}
		return frames[i : i+2]
	})
}

// walk visits each folded stack containing fn and records the path chosen
// by pick for the first occurrence of fn.
func walk(p *profile.Profile, fn trace.FunctionID, pick func(frames []trace.FunctionID, i int) []trace.FunctionID) (*Result, error) {
	if !p.Has(fn) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, fn)
	}

	res := Empty(fn)
	for st := range p.Stacks() {
		first, count := -1, 0
		for i, f := range st.Frames {
			if f != fn {
				continue
			}
			if first < 0 {
				first = i
			}
			count++
		}
		if count == 0 {
			continue
		}
		if count > 1 {
			res.RecursiveStacks++
		}
		res.add(pick(st.Frames, first), st.Weight*int64(count))
	}
	return res, nil
}
