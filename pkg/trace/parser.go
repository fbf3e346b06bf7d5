package trace

import (
	"bufio"
	"io"
	"iter"
	"strconv"
	"strings"
)

// Format is the on-disk layout of a trace.
type Format string

const (
	// FormatKP is the "!"-delimited block format: frames innermost first,
	// the sample weight on the last line of the block.
	FormatKP Format = "kp"
	// FormatFolded is the collapsed stack format: "root;...;leaf count".
	FormatFolded Format = "folded"
)

// Options configures trace parsing.
type Options struct {
	Format Format
	// SkipPreamble ignores everything before the first delimiter line.
	// dtrace and systemtap print a header there.
	SkipPreamble bool
	MaxLineSize  int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Format:      FormatKP,
		MaxLineSize: 1024 * 1024,
	}
}

// Sample is one recorded stack capture, root first, leaf last.
type Sample struct {
	Frames []Frame
	Weight int64
}

// Leaf returns the innermost, currently executing frame.
func (s Sample) Leaf() Frame {
	return s.Frames[len(s.Frames)-1]
}

// Reader reads samples from a trace stream one at a time.
// Malformed blocks are skipped and counted, never returned as errors.
type Reader struct {
	scanner *bufio.Scanner
	opts    Options

	block   []string
	opened  bool
	sample  Sample
	dropped int
	err     error
}

// NewReader returns a Reader for the given stream.
func NewReader(r io.Reader, opts Options) *Reader {
	if opts.Format == "" {
		opts.Format = FormatKP
	}
	if opts.MaxLineSize <= 0 {
		opts.MaxLineSize = DefaultOptions().MaxLineSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), opts.MaxLineSize)
	return &Reader{
		scanner: scanner,
		opts:    opts,
	}
}

// Scan advances to the next well-formed sample. It returns false at the
// end of the stream or on a read error, see Err.
func (r *Reader) Scan() bool {
	if r.opts.Format == FormatFolded {
		return r.scanFolded()
	}
	return r.scanBlocks()
}

// Sample returns the sample produced by the last call to Scan.
func (r *Reader) Sample() Sample {
	return r.sample
}

// Err returns the first non-EOF read error.
func (r *Reader) Err() error {
	return r.err
}

// Dropped returns the number of malformed blocks skipped so far.
func (r *Reader) Dropped() int {
	return r.dropped
}

// All returns an iterator over the remaining samples.
func (r *Reader) All() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for r.Scan() {
			if !yield(r.sample) {
				return
			}
		}
	}
}

func (r *Reader) scanBlocks() bool {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())

		if strings.ContainsRune(line, '!') {
			preamble := !r.opened
			r.opened = true
			block := r.block
			r.block = r.block[:0]

			if preamble && r.opts.SkipPreamble {
				continue
			}
			if s, ok := parseBlock(block); ok {
				r.sample = s
				return true
			}
			if len(block) > 0 {
				r.dropped++
			}
			continue
		}

		if line == "" {
			continue
		}
		r.block = append(r.block, line)
	}

	r.err = r.scanner.Err()

	// A trailing block without its delimiter is incomplete.
	if len(r.block) > 0 {
		r.dropped++
		r.block = nil
	}
	return false
}

// parseBlock turns the lines of one block into a sample. The input lists
// frames innermost first; the sample is built root first.
func parseBlock(lines []string) (Sample, bool) {
	n := len(lines)
	if n < 2 {
		return Sample{}, false
	}
	weight, err := strconv.ParseInt(lines[n-1], 10, 64)
	if err != nil || weight < 1 {
		return Sample{}, false
	}

	frames := make([]Frame, n-1)
	for i, line := range lines[:n-1] {
		frames[n-2-i] = Normalize(line)
	}
	return Sample{Frames: frames, Weight: weight}, true
}
