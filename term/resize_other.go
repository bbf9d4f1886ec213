//go:build !unix

package term

import (
	"os"

	xterm "golang.org/x/term"
)

func terminalSize(fd int) (int, int, error) { return xterm.GetSize(fd) }

func notifyResize(chan os.Signal) {}

func stopResize(chan os.Signal) {}
