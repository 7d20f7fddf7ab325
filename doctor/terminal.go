package doctor

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"voxnote/shutdown"
)

// guardTerminal snapshots the terminal mode and restores it when the
// returned func runs or the user interrupts the checks.
func guardTerminal() (restore func()) {
	fd := int(os.Stdin.Fd())
	var state *term.State
	if term.IsTerminal(fd) {
		state, _ = term.GetState(fd)
	}
	reset := func() {
		if state != nil {
			term.Restore(fd, state)
		}
	}

	stop := shutdown.OnSignal(func() {
		reset()
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	})
	return func() {
		stop()
		reset()
	}
}
