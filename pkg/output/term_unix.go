//go:build linux || darwin || freebsd || netbsd || openbsd

package output

import "golang.org/x/sys/unix"

func terminalWidth(fd uintptr) int {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(ws.Col)
}
