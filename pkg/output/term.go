package output

import (
	"io"
	"os"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 120

// Width returns the column count of the terminal behind w, or DefaultWidth.
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultWidth
	}
	if cols := terminalWidth(f.Fd()); cols > 0 {
		return cols
	}
	return DefaultWidth
}
