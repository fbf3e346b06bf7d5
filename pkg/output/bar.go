package output

import (
	"strings"
	"unicode/utf8"
)

// bar block characters from one eighth to full width
var barBlocks = []rune{
	'\u258F', // ▏
	'\u258E', // ▎
	'\u258D', // ▍
	'\u258C', // ▌
	'\u258B', // ▋
	'\u258A', // ▊
	'\u2589', // ▉
	'\u2588', // █
}

// Bar renders percent (0-100) as a horizontal bar of at most width cells,
// with eighth-cell resolution.
func Bar(percent float64, width int) string {
	if width < 1 || percent <= 0 {
		return ""
	}
	if percent > 100 {
		percent = 100
	}

	eighths := int(percent / 100 * float64(width*8))
	if eighths == 0 {
		// Any sampled share stays visible.
		eighths = 1
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(string(barBlocks[7]), eighths/8))
	if rem := eighths % 8; rem > 0 {
		b.WriteRune(barBlocks[rem-1])
	}
	return b.String()
}

// Truncate shortens s to max runes, marking the cut with "..".
func Truncate(s string, max int) string {
	if max < 1 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-2]) + ".."
}
