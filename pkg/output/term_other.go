//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package output

func terminalWidth(uintptr) int {
	return 0
}
