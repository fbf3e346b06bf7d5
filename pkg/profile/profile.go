// Package profile aggregates trace samples into per-trace weight tables.
package profile

import (
	"iter"
	"maps"

	"github.com/danpilch/kpstk/pkg/trace"
)

// Separator joins function identities into a folded stack key. A
// FunctionID never contains it because normalization cuts the symbol at
// the first "+".
const Separator = "+"

// StackKey is a folded stack: function identities root to leaf joined by
// Separator.
type StackKey string

// Stack is one distinct folded stack with its accumulated weight.
// Frames must not be modified.
type Stack struct {
	Key    StackKey
	Frames []trace.FunctionID
	Weight int64
}

// Profile holds the aggregate state for one trace. It is immutable once
// built and safe for concurrent readers.
type Profile struct {
	name string

	total       int64
	inclusive   map[trace.FunctionID]int64
	exclusive   map[trace.FunctionID]int64
	instruction map[trace.InstructionID]int64
	stacks      map[StackKey]*Stack

	samples int
	dropped int
	digest  uint64
}

// Name returns the source the profile was built from, usually a path.
func (p *Profile) Name() string { return p.name }

// Total returns the sum of all sample weights.
func (p *Profile) Total() int64 { return p.total }

// Samples returns the number of well-formed samples aggregated.
func (p *Profile) Samples() int { return p.samples }

// Dropped returns the number of malformed blocks skipped while parsing.
func (p *Profile) Dropped() int { return p.dropped }

// Digest is a content hash over the folded stacks and their weights.
// Two traces with the same samples have the same digest.
func (p *Profile) Digest() uint64 { return p.digest }

// Percent returns w as a percentage of the profile total.
func (p *Profile) Percent(w int64) float64 {
	if p.total == 0 {
		return 0
	}
	return 100 * float64(w) / float64(p.total)
}

// Inclusive returns the inclusive weight of fn and whether it was sampled.
func (p *Profile) Inclusive(fn trace.FunctionID) (int64, bool) {
	w, ok := p.inclusive[fn]
	return w, ok
}

// Exclusive returns the exclusive weight of fn and whether it was ever a
// leaf.
func (p *Profile) Exclusive(fn trace.FunctionID) (int64, bool) {
	w, ok := p.exclusive[fn]
	return w, ok
}

// Instruction returns the weight of an instruction site.
func (p *Profile) Instruction(id trace.InstructionID) (int64, bool) {
	w, ok := p.instruction[id]
	return w, ok
}

// Has reports whether fn appears on any sampled stack.
func (p *Profile) Has(fn trace.FunctionID) bool {
	_, ok := p.inclusive[fn]
	return ok
}

func (p *Profile) InclusiveWeights() iter.Seq2[trace.FunctionID, int64] {
	return maps.All(p.inclusive)
}

func (p *Profile) ExclusiveWeights() iter.Seq2[trace.FunctionID, int64] {
	return maps.All(p.exclusive)
}

func (p *Profile) InstructionWeights() iter.Seq2[trace.InstructionID, int64] {
	return maps.All(p.instruction)
}

// StackWeights iterates folded stack keys and their weights.
func (p *Profile) StackWeights() iter.Seq2[StackKey, int64] {
	return func(yield func(StackKey, int64) bool) {
		for k, s := range p.stacks {
			if !yield(k, s.Weight) {
				return
			}
		}
	}
}

// Stacks iterates the distinct folded stacks with their parsed frames.
func (p *Profile) Stacks() iter.Seq[Stack] {
	return func(yield func(Stack) bool) {
		for _, s := range p.stacks {
			if !yield(*s) {
				return
			}
		}
	}
}

// NumStacks returns the number of distinct folded stacks.
func (p *Profile) NumStacks() int { return len(p.stacks) }

// NumFunctions returns the number of distinct sampled functions.
func (p *Profile) NumFunctions() int { return len(p.inclusive) }
