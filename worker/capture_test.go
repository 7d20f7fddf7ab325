package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"voxnote/listen"
	"voxnote/queue"
	"voxnote/transcriber"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// fakeListener yields scripted phrases, then wait timeouts.
type fakeListener struct {
	mu          sync.Mutex
	phrases     [][]byte
	listenErr   error
	calibErr    error
	closed      bool
	listenCalls int
}

func (l *fakeListener) Calibrate(time.Duration) error { return l.calibErr }

func (l *fakeListener) Listen(timeout, _ time.Duration) ([]byte, error) {
	l.mu.Lock()
	l.listenCalls++
	if l.listenErr != nil {
		err := l.listenErr
		l.mu.Unlock()
		return nil, err
	}
	if len(l.phrases) > 0 {
		p := l.phrases[0]
		l.phrases = l.phrases[1:]
		l.mu.Unlock()
		return p, nil
	}
	l.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return nil, listen.ErrWaitTimeout
}

func (l *fakeListener) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *fakeListener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

type openCounter struct {
	mu    sync.Mutex
	calls int
	l     *fakeListener
	err   error
}

func (o *openCounter) open() (Listener, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.l, nil
}

func (o *openCounter) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func testCaptureConfig() CaptureConfig {
	cfg := DefaultCaptureConfig()
	cfg.Backoff = 10 * time.Millisecond
	return cfg
}

func TestCaptureUnavailable(t *testing.T) {
	rec := &Recorder{}
	w := NewCaptureWorker(nil, transcriber.NewFakeText(), queue.New[string](8), rec, testCaptureConfig())

	err := w.Start(context.Background())
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("err = %v, want ErrCapabilityUnavailable", err)
	}
	if w.Listening() {
		t.Error("worker listening after failed start")
	}
	if len(rec.Statuses()) != 0 || rec.StateChanges() != 0 {
		t.Errorf("unexpected notifications: %q", rec.Statuses())
	}

	w = NewCaptureWorker((&openCounter{l: &fakeListener{}}).open, nil, queue.New[string](8), rec, testCaptureConfig())
	if err := w.Start(context.Background()); !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("nil recognizer: err = %v", err)
	}
}

func TestCaptureDeliversRecognizedText(t *testing.T) {
	l := &fakeListener{phrases: [][]byte{{1}, {2}}}
	oc := &openCounter{l: l}
	out := queue.New[string](8)
	rec := &Recorder{}
	w := NewCaptureWorker(oc.open, transcriber.NewFakeText("hello", "world"), out, rec, testCaptureConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !w.Listening() {
		t.Fatal("not listening after Start")
	}
	waitFor(t, "two chunks", func() bool { return out.Len() == 2 })

	if got := out.Drain(); got[0] != "hello" || got[1] != "world" {
		t.Errorf("chunks = %q", got)
	}
	if !rec.HasStatus("Listening...") || !rec.HasStatus("Recognized.") {
		t.Errorf("statuses = %q", rec.Statuses())
	}

	if !w.Stop() {
		t.Error("Stop() = false while listening")
	}
	w.Wait()
	if w.Listening() {
		t.Error("still listening after Wait")
	}
	if rec.LastStatus() != "Ready" {
		t.Errorf("last status = %q, want Ready", rec.LastStatus())
	}
	if !l.isClosed() {
		t.Error("listener not closed on exit")
	}
	if w.Stop() {
		t.Error("Stop() = true when idle")
	}
}

func TestCaptureStartIsIdempotent(t *testing.T) {
	oc := &openCounter{l: &fakeListener{}}
	w := NewCaptureWorker(oc.open, transcriber.NewFakeText(), queue.New[string](8), &Recorder{}, testCaptureConfig())
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "open", func() bool { return oc.count() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if n := oc.count(); n != 1 {
		t.Errorf("microphone opened %d times, want 1", n)
	}
	w.Stop()
	w.Wait()

	// A fresh generation may start once idle.
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second open", func() bool { return oc.count() == 2 })
	w.Stop()
	w.Wait()
}

func TestCaptureRecognitionErrors(t *testing.T) {
	l := &fakeListener{phrases: [][]byte{{1}, {2}, {3}}}
	fake := transcriber.NewFake(
		transcriber.FakeResult{Err: fmt.Errorf("wrapped: %w", transcriber.ErrNoMatch)},
		transcriber.FakeResult{Err: &transcriber.ServiceError{Provider: "fake", Err: errors.New("503")}},
		transcriber.FakeResult{Text: "after"},
	)
	out := queue.New[string](8)
	rec := &Recorder{}
	w := NewCaptureWorker((&openCounter{l: l}).open, fake, out, rec, testCaptureConfig())

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "recovered chunk", func() bool { return out.Len() == 1 })
	w.Stop()
	w.Wait()

	if !rec.HasStatus("Could not understand audio.") {
		t.Errorf("missing no-match status in %q", rec.Statuses())
	}
	var sawService bool
	for _, s := range rec.Statuses() {
		if strings.HasPrefix(s, "ASR service error: ") && strings.Contains(s, "503") {
			sawService = true
		}
	}
	if !sawService {
		t.Errorf("missing service error status in %q", rec.Statuses())
	}
	if len(rec.Errors()) != 0 {
		t.Errorf("recognition errors must not raise dialogs: %+v", rec.Errors())
	}
}

func TestCaptureHardwareErrors(t *testing.T) {
	tests := []struct {
		name string
		oc   *openCounter
	}{
		{"open fails", &openCounter{err: errors.New("no such device")}},
		{"calibrate fails", &openCounter{l: &fakeListener{calibErr: listen.ErrStalled}}},
		{"listen fails", &openCounter{l: &fakeListener{listenErr: listen.ErrStalled}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &Recorder{}
			w := NewCaptureWorker(tt.oc.open, transcriber.NewFakeText(), queue.New[string](8), rec, testCaptureConfig())

			if err := w.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			w.Wait()

			if w.Listening() {
				t.Error("still listening after hardware error")
			}
			errs := rec.Errors()
			if len(errs) != 1 || errs[0].Title != "Microphone Error" {
				t.Fatalf("errors = %+v, want one Microphone Error", errs)
			}
			if !rec.HasStatus("Microphone error.") || rec.LastStatus() != "Ready" {
				t.Errorf("statuses = %q", rec.Statuses())
			}
		})
	}
}

func TestToken(t *testing.T) {
	tok := NewToken()
	if tok.Cancelled() {
		t.Fatal("new token cancelled")
	}
	tok.Cancel()
	tok.Cancel()
	if !tok.Cancelled() {
		t.Fatal("token not cancelled")
	}
	tok.Reset()
	if tok.Cancelled() {
		t.Fatal("token still cancelled after Reset")
	}
}
