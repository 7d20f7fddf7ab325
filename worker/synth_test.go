package worker

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"voxnote/queue"
	"voxnote/speech"
)

func engines(f speech.Factory) EngineFactory {
	return func() (Engine, error) { return f() }
}

func newSynth(t *testing.T, d time.Duration, capacity int) (*SynthesisWorker, *speech.FakeRecorder, *Recorder) {
	t.Helper()
	fr := speech.NewFakeRecorder(d)
	rec := &Recorder{}
	w := NewSynthesisWorker(context.Background(), engines(fr.Factory()), queue.New[Utterance](capacity), rec)
	t.Cleanup(w.Close)
	return w, fr, rec
}

func idle(w *SynthesisWorker) func() bool {
	return func() bool { return !w.Speaking() && w.Pending() == 0 }
}

func TestSynthesisHelloWorld(t *testing.T) {
	w, fr, rec := newSynth(t, 20*time.Millisecond, 8)

	if err := w.Enqueue("Hello"); err != nil {
		t.Fatal(err)
	}
	if err := w.Enqueue("World"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "both spoken", func() bool { return len(fr.Spoken()) == 2 })
	waitFor(t, "idle", func() bool { return idle(w)() && rec.LastStatus() == "Ready" })

	if got := fr.Spoken(); !slices.Equal(got, []string{"Hello", "World"}) {
		t.Errorf("spoken = %q, want [Hello World]", got)
	}
	if !rec.HasStatus("Queued for speaking...") || !rec.HasStatus("Speaking...") {
		t.Errorf("statuses = %q", rec.Statuses())
	}
	// The loop keeps polling after the queue drains.
	time.Sleep(3 * idlePoll)
	if len(fr.Spoken()) != 2 {
		t.Errorf("extra playback calls: %q", fr.Spoken())
	}
}

func TestSynthesisOrderWithoutOverlap(t *testing.T) {
	w, fr, _ := newSynth(t, 5*time.Millisecond, 32)

	var want []string
	for _, s := range []string{"one", "two", "three", "four", "five", "six"} {
		if err := w.Enqueue(s); err != nil {
			t.Fatal(err)
		}
		want = append(want, s)
	}
	waitFor(t, "all spoken", func() bool { return len(fr.Spoken()) == len(want) })

	if got := fr.Spoken(); !slices.Equal(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
	if fr.Overlaps() != 0 {
		t.Errorf("overlapping playback calls: %d", fr.Overlaps())
	}
}

func TestSynthesisBlankText(t *testing.T) {
	w, fr, rec := newSynth(t, time.Millisecond, 8)

	if err := w.Enqueue("   \n\t"); err != nil {
		t.Fatal(err)
	}
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", w.Pending())
	}
	if rec.LastStatus() != "Nothing to speak." {
		t.Errorf("status = %q", rec.LastStatus())
	}
	if fr.Created() != 0 {
		t.Error("engine created for blank text")
	}
}

func TestSynthesisUnavailable(t *testing.T) {
	w := NewSynthesisWorker(context.Background(), nil, queue.New[Utterance](8), &Recorder{})
	if err := w.Enqueue("hi"); !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("err = %v, want ErrCapabilityUnavailable", err)
	}
	if w.Pending() != 0 {
		t.Error("item queued without a factory")
	}
}

func TestSynthesisStopClearsQueue(t *testing.T) {
	w, fr, rec := newSynth(t, time.Second, 8)

	for _, s := range []string{"a", "b", "c"} {
		if err := w.Enqueue(s); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "speaking", w.Speaking)

	w.Stop()
	if w.Pending() != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", w.Pending())
	}
	if w.Speaking() {
		t.Error("still speaking after Stop")
	}
	if !rec.HasStatus("Stopped.") {
		t.Errorf("statuses = %q", rec.Statuses())
	}
	w.Wait()
	if got := fr.Spoken(); !slices.Equal(got, []string{"a"}) {
		t.Errorf("spoken = %q, want [a]", got)
	}
	waitFor(t, "engine closed", func() bool { return fr.Closed() == 1 })
}

func TestSynthesisRestartAfterStop(t *testing.T) {
	w, fr, _ := newSynth(t, 300*time.Millisecond, 8)

	if err := w.Enqueue("first"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "speaking", w.Speaking)
	w.Stop()

	// Re-enqueue immediately; the new generation must not overlap the
	// aborted playback and must use a fresh engine.
	fr.SetDuration(10 * time.Millisecond)
	if err := w.Enqueue("second"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second spoken", func() bool { return len(fr.Spoken()) == 2 })
	waitFor(t, "idle", idle(w))

	if got := fr.Spoken(); !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("spoken = %q", got)
	}
	if fr.Overlaps() != 0 {
		t.Errorf("overlaps = %d", fr.Overlaps())
	}
	if fr.Created() != 2 {
		t.Errorf("engines created = %d, want 2", fr.Created())
	}
}

func TestSynthesisInitFailureSkipsItem(t *testing.T) {
	w, fr, rec := newSynth(t, 5*time.Millisecond, 8)
	fr.SetInitErr(errors.New("no voices"))

	if err := w.Enqueue("lost"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "init error", func() bool { return len(rec.Errors()) == 1 })
	if errs := rec.Errors(); errs[0].Title != "TTS Error" {
		t.Errorf("error title = %q", errs[0].Title)
	}
	waitFor(t, "queue drained", func() bool { return w.Pending() == 0 })

	fr.SetInitErr(nil)
	if err := w.Enqueue("found"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "spoken", func() bool { return len(fr.Spoken()) == 1 })
	if got := fr.Spoken(); got[0] != "found" {
		t.Errorf("spoken = %q, failed item must not be retried", got)
	}
}

func TestSynthesisPlaybackFailureInvalidatesEngine(t *testing.T) {
	w, fr, rec := newSynth(t, 5*time.Millisecond, 8)
	fr.FailOn["bad"] = true

	for _, s := range []string{"bad", "good"} {
		if err := w.Enqueue(s); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "both attempted", func() bool { return len(fr.Spoken()) == 2 })
	waitFor(t, "idle", idle(w))

	if errs := rec.Errors(); len(errs) != 1 || errs[0].Title != "TTS Error" {
		t.Fatalf("errors = %+v", errs)
	}
	if !rec.HasStatus("TTS error.") {
		t.Errorf("statuses = %q", rec.Statuses())
	}
	if fr.Created() != 2 || fr.Closed() < 1 {
		t.Errorf("created=%d closed=%d, want a fresh engine after failure", fr.Created(), fr.Closed())
	}
}

func TestSynthesisQueueFull(t *testing.T) {
	w, _, _ := newSynth(t, time.Second, 1)

	var full int
	for _, s := range []string{"a", "b", "c"} {
		if err := w.Enqueue(s); errors.Is(err, ErrQueueFull) {
			full++
		} else if err != nil {
			t.Fatal(err)
		}
	}
	if full == 0 {
		t.Error("expected ErrQueueFull with a single-slot queue")
	}
}

func TestSynthesisCloseReleasesEngine(t *testing.T) {
	fr := speech.NewFakeRecorder(time.Second)
	w := NewSynthesisWorker(context.Background(), engines(fr.Factory()), queue.New[Utterance](8), &Recorder{})

	if err := w.Enqueue("x"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "speaking", w.Speaking)

	done := make(chan struct{})
	go func() { w.Close(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	if fr.Closed() != 1 {
		t.Errorf("engines closed = %d, want 1", fr.Closed())
	}
}
