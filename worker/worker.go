// Package worker runs the background capture and synthesis loops. Workers
// never touch the document; they hand results to queues and report
// progress through a Notifier.
package worker

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCapabilityUnavailable means the recognizer, microphone or speech
// engine needed for an action is not configured.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

var ErrQueueFull = errors.New("speech queue is full")

// Token is a cooperative cancellation flag. A worker checks it only at the
// head of its loop, so a blocking call in progress runs to completion
// before cancellation is observed.
type Token struct {
	cancelled atomic.Bool
}

func NewToken() *Token { return &Token{} }

func (t *Token) Cancel() { t.cancelled.Store(true) }

func (t *Token) Cancelled() bool { return t.cancelled.Load() }

func (t *Token) Reset() { t.cancelled.Store(false) }

// Notifier receives worker progress. Implementations must be safe for
// concurrent use and must not block; the TUI forwards each call to its
// event loop.
type Notifier interface {
	Status(text string)
	Error(title string, err error)
	StateChanged()
}

type nopNotifier struct{}

func (nopNotifier) Status(string)       {}
func (nopNotifier) Error(string, error) {}
func (nopNotifier) StateChanged()       {}

// NopNotifier discards all notifications.
var NopNotifier Notifier = nopNotifier{}

type Report struct {
	Title string
	Err   error
}

// Recorder is a Notifier that keeps everything it is told.
type Recorder struct {
	mu       sync.Mutex
	statuses []string
	errors   []Report
	changes  int
	onStatus func(string)
}

// OnStatus registers a hook called after each status is recorded.
func (r *Recorder) OnStatus(fn func(string)) {
	r.mu.Lock()
	r.onStatus = fn
	r.mu.Unlock()
}

func (r *Recorder) Status(text string) {
	r.mu.Lock()
	r.statuses = append(r.statuses, text)
	fn := r.onStatus
	r.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (r *Recorder) Error(title string, err error) {
	r.mu.Lock()
	r.errors = append(r.errors, Report{Title: title, Err: err})
	r.mu.Unlock()
}

func (r *Recorder) StateChanged() {
	r.mu.Lock()
	r.changes++
	r.mu.Unlock()
}

func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}

// LastStatus returns "" when nothing has been reported.
func (r *Recorder) LastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *Recorder) Errors() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.errors...)
}

func (r *Recorder) StateChanges() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes
}

// HasStatus reports whether text was ever reported.
func (r *Recorder) HasStatus(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s == text {
			return true
		}
	}
	return false
}
