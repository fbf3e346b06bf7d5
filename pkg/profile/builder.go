package profile

import (
	"context"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/danpilch/kpstk/pkg/trace"
)

// Builder aggregates samples into a Profile in a single forward pass.
// Build must be called once; the Builder must not be used afterwards.
type Builder struct {
	p *Profile

	// names interns function identities so every stack shares one copy
	// of each symbol string.
	names map[trace.FunctionID]trace.FunctionID

	fnCount   map[trace.FunctionID]int64
	instCount map[trace.InstructionID]int64
	key       strings.Builder
	frames    []trace.FunctionID
}

// NewBuilder returns an empty builder for the named trace.
func NewBuilder(name string) *Builder {
	return &Builder{
		p: &Profile{
			name:        name,
			inclusive:   make(map[trace.FunctionID]int64),
			exclusive:   make(map[trace.FunctionID]int64),
			instruction: make(map[trace.InstructionID]int64),
			stacks:      make(map[StackKey]*Stack),
		},
		names:     make(map[trace.FunctionID]trace.FunctionID),
		fnCount:   make(map[trace.FunctionID]int64),
		instCount: make(map[trace.InstructionID]int64),
	}
}

func (b *Builder) intern(fn trace.FunctionID) trace.FunctionID {
	if v, ok := b.names[fn]; ok {
		return v
	}
	b.names[fn] = fn
	return fn
}

// Add folds one sample into the profile. A function occurring N times on
// the stack contributes N times the sample weight to its inclusive weight,
// and likewise for instruction sites. The folded stack and the total get
// the weight exactly once.
func (b *Builder) Add(s trace.Sample) {
	if s.Weight < 1 || len(s.Frames) == 0 {
		return
	}
	p := b.p
	w := s.Weight

	clear(b.fnCount)
	clear(b.instCount)
	b.key.Reset()
	b.frames = b.frames[:0]

	for i, f := range s.Frames {
		fn := b.intern(f.Function)
		b.frames = append(b.frames, fn)
		b.fnCount[fn]++
		b.instCount[f.Instruction]++

		if i > 0 {
			b.key.WriteString(Separator)
		}
		b.key.WriteString(string(fn))
	}

	leaf := b.frames[len(b.frames)-1]
	p.exclusive[leaf] += w

	key := StackKey(b.key.String())
	st, ok := p.stacks[key]
	if !ok {
		st = &Stack{Key: key, Frames: slices.Clone(b.frames)}
		p.stacks[key] = st
	}
	st.Weight += w

	for fn, n := range b.fnCount {
		p.inclusive[fn] += w * n
	}
	for inst, n := range b.instCount {
		p.instruction[inst] += w * n
	}

	p.total += w
	p.samples++
}

// Build freezes the aggregates and returns the profile.
func (b *Builder) Build() *Profile {
	p := b.p
	p.digest = digest(p)
	b.p = nil
	b.names = nil
	return p
}

func digest(p *Profile) uint64 {
	keys := make([]StackKey, 0, len(p.stacks))
	for k := range p.stacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	h := xxhash.New()
	var buf []byte
	for _, k := range keys {
		buf = append(buf[:0], k...)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, p.stacks[k].Weight, 10)
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return h.Sum64()
}

// checkInterval is how many samples are aggregated between context checks.
const checkInterval = 4096

// Aggregate builds a profile from a sample sequence. Cancelling ctx stops
// the pass and returns the context error.
func Aggregate(ctx context.Context, name string, samples iter.Seq[trace.Sample]) (*Profile, error) {
	b := NewBuilder(name)
	n := 0
	for s := range samples {
		if n%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++
		b.Add(s)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
