// Package export converts aggregated profiles to pprof so they can be
// inspected with `go tool pprof` and other pprof viewers.
package export

import (
	"fmt"
	"io"

	pprof "github.com/google/pprof/profile"

	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/trace"
)

// Pprof builds a pprof profile with one "samples/count" value per folded
// stack. Locations are per function; instruction offsets are not kept.
func Pprof(p *profile.Profile) (*pprof.Profile, error) {
	sampleType := &pprof.ValueType{Type: "samples", Unit: "count"}
	out := &pprof.Profile{
		SampleType: []*pprof.ValueType{sampleType},
		PeriodType: sampleType,
		Period:     1,
		Comments:   []string{"source: " + p.Name()},
	}

	locations := make(map[trace.FunctionID]*pprof.Location)
	location := func(fn trace.FunctionID) *pprof.Location {
		if loc, ok := locations[fn]; ok {
			return loc
		}
		id := uint64(len(out.Function) + 1)
		f := &pprof.Function{ID: id, Name: string(fn), SystemName: string(fn)}
		loc := &pprof.Location{ID: id, Line: []pprof.Line{{Function: f}}}
		out.Function = append(out.Function, f)
		out.Location = append(out.Location, loc)
		locations[fn] = loc
		return loc
	}

	for s := range p.Stacks() {
		// pprof lists locations leaf first.
		locs := make([]*pprof.Location, len(s.Frames))
		for i, fn := range s.Frames {
			locs[len(s.Frames)-1-i] = location(fn)
		}
		out.Sample = append(out.Sample, &pprof.Sample{
			Location: locs,
			Value:    []int64{s.Weight},
		})
	}

	if err := out.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid pprof profile for %s: %w", p.Name(), err)
	}
	return out, nil
}

// WritePprof writes p to w as a gzip-compressed pprof protobuf.
func WritePprof(w io.Writer, p *profile.Profile) error {
	out, err := Pprof(p)
	if err != nil {
		return err
	}
	return out.Write(w)
}
