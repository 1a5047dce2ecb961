package pipeline

import (
	"io"
	"os"

	"golang.org/x/term"
)

// progressWriter sends the progress bar to stderr when it is a terminal and
// discards it otherwise, keeping piped log output clean.
func progressWriter() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return os.Stderr
	}
	return io.Discard
}
