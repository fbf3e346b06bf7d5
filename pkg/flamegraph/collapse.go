package flamegraph

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danpilch/kpstk/pkg/profile"
)

// WriteFolded writes p in the folded stack format read by flamegraph.pl
// and most profile viewers: "root;caller;leaf weight", one stack per line,
// sorted for deterministic output.
func WriteFolded(w io.Writer, p *profile.Profile) error {
	lines := make(map[string]int64, p.NumStacks())
	for s := range p.Stacks() {
		names := make([]string, len(s.Frames))
		for i, fn := range s.Frames {
			names[i] = string(fn)
		}
		lines[strings.Join(names, ";")] += s.Weight
	}
	return writeCollapsed(w, lines)
}

func writeCollapsed(w io.Writer, stacks map[string]int64) error {
	keys := make([]string, 0, len(stacks))
	for k := range stacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	for _, k := range keys {
		fmt.Fprintf(bw, "%s %d\n", k, stacks[k])
	}
	return bw.Flush()
}
