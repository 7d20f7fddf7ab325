package speech

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FakeRecorder is shared by every engine a fake factory creates, so tests
// can observe ordering and overlap across engine generations.
type FakeRecorder struct {
	// Duration of each Speak unless stopped.
	Duration time.Duration
	// FailOn makes Speak fail for texts in the set.
	FailOn map[string]bool
	// InitErr makes the factory fail.
	InitErr error

	mu       sync.Mutex
	spoken   []string
	active   int
	overlaps int
	created  int
	closed   int
}

func NewFakeRecorder(d time.Duration) *FakeRecorder {
	return &FakeRecorder{Duration: d, FailOn: map[string]bool{}}
}

func (r *FakeRecorder) Factory() Factory {
	return func() (Engine, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.InitErr != nil {
			return nil, r.InitErr
		}
		r.created++
		return &Fake{rec: r, stop: make(chan struct{})}, nil
	}
}

func (r *FakeRecorder) SetDuration(d time.Duration) {
	r.mu.Lock()
	r.Duration = d
	r.mu.Unlock()
}

func (r *FakeRecorder) SetInitErr(err error) {
	r.mu.Lock()
	r.InitErr = err
	r.mu.Unlock()
}

// Spoken lists texts whose Speak call started, in order.
func (r *FakeRecorder) Spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

// Overlaps counts Speak calls that started while another was running.
func (r *FakeRecorder) Overlaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlaps
}

func (r *FakeRecorder) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

func (r *FakeRecorder) Closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

var errFakeSpeak = errors.New("fake speech failure")

type Fake struct {
	rec *FakeRecorder

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
	closed  bool
}

func (f *Fake) Speak(ctx context.Context, text string) error {
	r := f.rec
	r.mu.Lock()
	r.spoken = append(r.spoken, text)
	if r.active > 0 {
		r.overlaps++
	}
	r.active++
	fail := r.FailOn[text]
	d := r.Duration
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	f.mu.Lock()
	stop := f.stop
	f.mu.Unlock()

	select {
	case <-time.After(d):
	case <-stop:
		return ErrAborted
	case <-ctx.Done():
		return ctx.Err()
	}
	if fail {
		return errFakeSpeak
	}
	return nil
}

func (f *Fake) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.stop)
	}
}

func (f *Fake) Close() error {
	f.Stop()
	f.mu.Lock()
	first := !f.closed
	f.closed = true
	f.mu.Unlock()
	if first {
		f.rec.mu.Lock()
		f.rec.closed++
		f.rec.mu.Unlock()
	}
	return nil
}
