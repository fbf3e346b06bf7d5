// Package flamegraph renders a profile's folded stacks as an SVG flame graph
// or as folded text for external tooling.
package flamegraph

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"html"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/danpilch/kpstk/pkg/profile"
)

// ErrNoSamples is returned when rendering an empty profile.
var ErrNoSamples = errors.New("no samples in profile")

// SVGOptions configures the flame graph SVG output.
type SVGOptions struct {
	Title       string
	Width       int
	Height      int
	ColorScheme string // "hot", "cold", "mem"
}

// DefaultSVGOptions returns sensible defaults.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Title:       "Flame Graph",
		Width:       1200,
		ColorScheme: "hot",
	}
}

const (
	frameHeight  = 16
	fontSize     = 12
	charWidth    = 7
	headerHeight = 40
	margin       = 10
)

// node is one frame of the merged call tree.
type node struct {
	name     string
	value    int64
	children map[string]*node
}

func (n *node) child(name string) *node {
	c, ok := n.children[name]
	if !ok {
		c = &node{name: name, children: make(map[string]*node)}
		n.children[name] = c
	}
	return c
}

// sorted returns the children in name order so output is deterministic.
func (n *node) sorted() []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *node) int {
		return cmp.Compare(a.name, b.name)
	})
	return out
}

// tree merges the folded stacks of p into a prefix tree rooted at "all".
func tree(p *profile.Profile) *node {
	root := &node{name: "all", children: make(map[string]*node)}
	for s := range p.Stacks() {
		n := root
		for _, fn := range s.Frames {
			n = n.child(string(fn))
			n.value += s.Weight
		}
		root.value += s.Weight
	}
	return root
}

// box is a laid out frame.
type box struct {
	name  string
	value int64
	x     int
	width int
	depth int
}

// layout assigns each frame a horizontal span proportional to its weight.
// Frames narrower than one pixel are dropped with their subtrees.
func layout(n *node, x, width, depth int, out []box) ([]box, int) {
	if width < 1 || n.value == 0 {
		return out, depth
	}
	out = append(out, box{name: n.name, value: n.value, x: x, width: width, depth: depth})

	deepest := depth
	cx := x
	for _, c := range n.sorted() {
		cw := int(float64(width) * float64(c.value) / float64(n.value))
		var d int
		out, d = layout(c, cx, max(cw, 1), depth+1, out)
		deepest = max(deepest, d)
		cx += max(cw, 1)
	}
	return out, deepest
}

// GenerateSVG renders p as an SVG flame graph, roots at the bottom.
func GenerateSVG(p *profile.Profile, w io.Writer, opts SVGOptions) error {
	if opts.Width == 0 {
		opts.Width = 1200
	}
	root := tree(p)
	if root.value == 0 {
		return ErrNoSamples
	}

	boxes, deepest := layout(root, margin, opts.Width-2*margin, 0, nil)
	if opts.Height == 0 {
		opts.Height = (deepest+2)*frameHeight + headerHeight + 20
	}
	baseY := opts.Height - 20

	bw := bufio.NewWriter(w)
	writeHeader(bw, opts, p.Name(), root.value)
	for _, b := range boxes {
		writeBox(bw, b, baseY-b.depth*frameHeight, root.value, opts.ColorScheme)
	}
	fmt.Fprintln(bw, "</svg>")
	return bw.Flush()
}

func writeHeader(w io.Writer, opts SVGOptions, source string, total int64) {
	fmt.Fprintf(w, `<?xml version="1.0" standalone="no"?>
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">
<svg version="1.1" width="%[1]d" height="%[2]d" xmlns="http://www.w3.org/2000/svg">
<style>
  .func:hover { stroke:black; stroke-width:0.5; cursor:pointer; }
  text { font-family: monospace; font-size: %[3]dpx; }
</style>
<rect x="0" y="0" width="%[1]d" height="%[2]d" fill="white"/>
<text x="%[4]d" y="20" text-anchor="middle" style="font-size:16px; font-weight:bold;">%[5]s</text>
<text x="%[4]d" y="35" text-anchor="middle" style="font-size:12px; fill:#666;">%[6]s (total weight %[7]d)</text>
`, opts.Width, opts.Height, fontSize, opts.Width/2,
		html.EscapeString(opts.Title), html.EscapeString(source), total)
}

// writeBox draws one frame whose bottom edge is at y.
func writeBox(w io.Writer, b box, y int, total int64, scheme string) {
	r, g, bl := frameColor(b.name, scheme)
	fmt.Fprintf(w, "<g class=\"func\">\n<title>%s (weight %d, %.2f%%)</title>\n",
		html.EscapeString(b.name), b.value, float64(b.value)/float64(total)*100)
	fmt.Fprintf(w, "<rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"rgb(%d,%d,%d)\" rx=\"1\"/>\n",
		b.x, y-frameHeight, b.width, frameHeight-1, r, g, bl)
	if label := fit(b.name, (b.width-4)/charWidth); label != "" {
		fmt.Fprintf(w, "<text x=\"%d\" y=\"%d\" fill=\"black\">%s</text>\n",
			b.x+2, y-4, html.EscapeString(label))
	}
	fmt.Fprintln(w, "</g>")
}

// fit shortens name to chars runes, or drops it when too little fits.
func fit(name string, chars int) string {
	if chars < 4 {
		return ""
	}
	if utf8.RuneCountInString(name) <= chars {
		return name
	}
	return string([]rune(name)[:chars-2]) + ".."
}

// frameColor picks a stable colour per function name so the same function
// has the same colour across graphs.
func frameColor(name, scheme string) (int, int, int) {
	h := xxhash.Sum64String(name)
	v1 := int(h % 55)
	v2 := int((h >> 8) % 150)
	switch scheme {
	case "cold":
		return 30, 50 + v2, 150 + int((h>>16)%100)
	case "mem":
		return 30, 190 + int((h>>16)%60), 30
	default: // "hot"
		return 200 + v1, 50 + v2, 30
	}
}
