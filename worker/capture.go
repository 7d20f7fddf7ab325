package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"voxnote/listen"
	"voxnote/log"
	"voxnote/metrics"
	"voxnote/queue"
	"voxnote/transcriber"
)

// Listener is an open microphone that yields one phrase per Listen.
type Listener interface {
	Calibrate(d time.Duration) error
	Listen(timeout, phraseLimit time.Duration) ([]byte, error)
	Close()
}

// OpenFunc opens the microphone for one capture generation.
type OpenFunc func() (Listener, error)

type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte) (string, error)
}

type CaptureConfig struct {
	Calibration time.Duration
	WaitTimeout time.Duration
	PhraseLimit time.Duration
	// Backoff after a recognizer service error.
	Backoff time.Duration
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Calibration: 500 * time.Millisecond,
		WaitTimeout: 2 * time.Second,
		PhraseLimit: 6 * time.Second,
		Backoff:     500 * time.Millisecond,
	}
}

// CaptureWorker listens continuously and pushes recognized text into the
// transcript queue until stopped. At most one generation runs at a time.
type CaptureWorker struct {
	open   OpenFunc
	rec    Recognizer
	out    *queue.Queue[string]
	notify Notifier
	cfg    CaptureConfig

	mu        sync.Mutex
	listening atomic.Bool
	token     *Token
	done      chan struct{}
}

// NewCaptureWorker accepts a nil open or rec; Start then reports
// ErrCapabilityUnavailable.
func NewCaptureWorker(open OpenFunc, rec Recognizer, out *queue.Queue[string], notify Notifier, cfg CaptureConfig) *CaptureWorker {
	if notify == nil {
		notify = NopNotifier
	}
	return &CaptureWorker{open: open, rec: rec, out: out, notify: notify, cfg: cfg}
}

func (w *CaptureWorker) Available() bool { return w.open != nil && w.rec != nil }

func (w *CaptureWorker) Listening() bool { return w.listening.Load() }

// Start begins a capture generation. It is a no-op while listening.
func (w *CaptureWorker) Start(ctx context.Context) error {
	if !w.Available() {
		return fmt.Errorf("speech recognition: %w", ErrCapabilityUnavailable)
	}

	w.mu.Lock()
	if w.listening.Load() {
		w.mu.Unlock()
		return nil
	}
	// A generation that already cleared listening may still be finishing
	// its exit reports.
	if w.done != nil {
		<-w.done
	}
	tok := NewToken()
	done := make(chan struct{})
	w.token = tok
	w.done = done
	w.listening.Store(true)
	w.mu.Unlock()

	metrics.WorkerActive("capture", true)
	w.notify.Status("Listening...")
	w.notify.StateChanged()

	go w.run(ctx, tok, done)
	return nil
}

// Stop asks the current generation to exit and reports whether one was
// listening. It does not wait.
func (w *CaptureWorker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.listening.Load() || w.token == nil {
		return false
	}
	w.token.Cancel()
	return true
}

// Wait blocks until the current generation, if any, has exited.
func (w *CaptureWorker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (w *CaptureWorker) run(ctx context.Context, tok *Token, done chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("capture worker panic: %v", r)
			w.notify.Error("Listening Error", fmt.Errorf("%v", r))
			w.notify.Status("Listening error.")
		}
		w.listening.Store(false)
		tok.Reset()
		metrics.WorkerActive("capture", false)
		w.notify.Status("Ready")
		w.notify.StateChanged()
		close(done)
	}()

	mic, err := w.open()
	if err != nil {
		w.hardwareError(err)
		return
	}
	defer mic.Close()

	if err := mic.Calibrate(w.cfg.Calibration); err != nil {
		w.hardwareError(err)
		return
	}

	for !tok.Cancelled() {
		pcm, err := mic.Listen(w.cfg.WaitTimeout, w.cfg.PhraseLimit)
		if errors.Is(err, listen.ErrWaitTimeout) {
			continue
		}
		if err != nil {
			w.hardwareError(err)
			return
		}
		if !w.recognize(ctx, pcm) {
			return
		}
	}
}

// recognize returns false when the worker must exit.
func (w *CaptureWorker) recognize(ctx context.Context, pcm []byte) bool {
	start := time.Now()
	text, err := w.rec.Recognize(ctx, pcm)
	metrics.ObserveRecognition(time.Since(start).Seconds())

	switch {
	case err == nil:
		if err := w.out.Put(ctx, text); err != nil {
			return false
		}
		metrics.QueueDepth("transcript", w.out.Len())
		metrics.RecognizedChunk()
		log.RecognizedText(text)
		w.notify.Status("Recognized.")
	case errors.Is(err, transcriber.ErrNoMatch):
		metrics.RecognitionError("no_match")
		w.notify.Status("Could not understand audio.")
	default:
		metrics.RecognitionError("service")
		log.Warnf("recognition failed: %v", err)
		w.notify.Status(fmt.Sprintf("ASR service error: %v", err))
		select {
		case <-time.After(w.cfg.Backoff):
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (w *CaptureWorker) hardwareError(err error) {
	if errors.Is(err, listen.ErrClosed) {
		return
	}
	metrics.RecognitionError("hardware")
	log.Errorf("microphone error: %v", err)
	w.notify.Error("Microphone Error", err)
	w.notify.Status("Microphone error.")
}
