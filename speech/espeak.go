package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
)

var espeakBinaries = []string{"espeak-ng", "espeak"}

func findEspeak() (string, error) {
	for _, name := range espeakBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: install espeak-ng", ErrNoEngine)
}

// Espeak runs one espeak process per utterance.
type Espeak struct {
	bin   string
	voice string
	rate  int

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool // set by Stop, never cleared
}

func NewEspeak(bin, voice string, rate int) (*Espeak, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("espeak: %w", err)
	}
	return &Espeak{bin: bin, voice: voice, rate: rate}, nil
}

func (e *Espeak) args(text string) []string {
	var args []string
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	if e.rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.rate))
	}
	// "--" keeps text starting with '-' from being read as a flag.
	return append(args, "--", text)
}

func (e *Espeak) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, e.bin, e.args(text)...)

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrAborted
	}
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("starting espeak: %w", err)
	}
	e.cmd = cmd
	e.mu.Unlock()

	err := cmd.Wait()

	e.mu.Lock()
	e.cmd = nil
	stopped := e.stopped
	e.mu.Unlock()

	if stopped {
		return ErrAborted
	}
	if err != nil {
		return fmt.Errorf("espeak: %w", err)
	}
	return nil
}

// Stop kills the running utterance and makes later Speak calls return
// ErrAborted.
func (e *Espeak) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
}

func (e *Espeak) Close() error {
	e.Stop()
	return nil
}
