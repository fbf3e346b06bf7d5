package trace

import (
	"strconv"
	"strings"
)

func (r *Reader) scanFolded() bool {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if s, ok := parseFolded(line); ok {
			r.sample = s
			return true
		}
		r.dropped++
	}
	r.err = r.scanner.Err()
	return false
}

// parseFolded parses "func1;func2;func3 count". Folded stacks are already
// root first.
func parseFolded(line string) (Sample, bool) {
	idx := strings.LastIndexByte(line, ' ')
	if idx <= 0 {
		return Sample{}, false
	}
	weight, err := strconv.ParseInt(strings.TrimSpace(line[idx+1:]), 10, 64)
	if err != nil || weight < 1 {
		return Sample{}, false
	}

	var frames []Frame
	for _, name := range strings.Split(strings.TrimSpace(line[:idx]), ";") {
		if name == "" {
			continue
		}
		frames = append(frames, Normalize(name))
	}
	if len(frames) == 0 {
		return Sample{}, false
	}
	return Sample{Frames: frames, Weight: weight}, true
}
