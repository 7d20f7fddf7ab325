package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxnote/log"
	"voxnote/metrics"
	"voxnote/queue"
)

// Engine speaks one text at a time; Stop may be called concurrently with
// Speak and makes it return early.
type Engine interface {
	Speak(ctx context.Context, text string) error
	Stop()
	Close() error
}

type EngineFactory func() (Engine, error)

type Utterance struct {
	ID   string
	Text string

	gen uint64
}

const idlePoll = 200 * time.Millisecond

// SynthesisWorker plays queued utterances one at a time in enqueue order.
// Its loop is started lazily on the first Enqueue and keeps polling the
// queue until Stop.
type SynthesisWorker struct {
	factory EngineFactory
	queue   *queue.Queue[Utterance]
	notify  Notifier

	mu       sync.Mutex
	gen      uint64
	token    *Token
	done     chan struct{}
	carry    *Utterance
	engine   Engine
	inflight Engine
	speaking bool
	ctx      context.Context
}

// NewSynthesisWorker accepts a nil factory; Enqueue then reports
// ErrCapabilityUnavailable.
func NewSynthesisWorker(ctx context.Context, factory EngineFactory, q *queue.Queue[Utterance], notify Notifier) *SynthesisWorker {
	if notify == nil {
		notify = NopNotifier
	}
	return &SynthesisWorker{factory: factory, queue: q, notify: notify, ctx: ctx}
}

func (w *SynthesisWorker) Available() bool { return w.factory != nil }

func (w *SynthesisWorker) Speaking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.speaking
}

// Pending counts utterances waiting to be spoken.
func (w *SynthesisWorker) Pending() int {
	w.mu.Lock()
	n := w.queue.Len()
	if w.carry != nil {
		n++
	}
	w.mu.Unlock()
	return n
}

// Enqueue adds text to the queue and makes sure a loop is running.
// Blank text only reports "Nothing to speak.".
func (w *SynthesisWorker) Enqueue(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		w.notify.Status("Nothing to speak.")
		return nil
	}
	if !w.Available() {
		return fmt.Errorf("text to speech: %w", ErrCapabilityUnavailable)
	}

	w.mu.Lock()
	if w.token == nil || w.token.Cancelled() {
		prev := w.done
		tok := NewToken()
		done := make(chan struct{})
		w.gen++
		w.token = tok
		w.done = done
		go w.run(tok, w.gen, prev, done)
	}
	err := w.queue.TryPut(Utterance{ID: uuid.NewString(), Text: text, gen: w.gen})
	w.mu.Unlock()

	if errors.Is(err, queue.ErrFull) {
		return ErrQueueFull
	}
	if err != nil {
		return err
	}
	metrics.QueueDepth("utterance", w.queue.Len())
	w.notify.Status("Queued for speaking...")
	w.notify.StateChanged()
	return nil
}

func (w *SynthesisWorker) run(tok *Token, gen uint64, prev <-chan struct{}, done chan struct{}) {
	// Never dequeue while a stopped generation is still inside Speak.
	if prev != nil {
		<-prev
	}
	defer close(done)

	if u, ok := w.takeCarry(gen); ok {
		w.speak(tok, u)
	}

	for !tok.Cancelled() {
		u, ok := w.queue.GetTimeout(idlePoll)
		if ok && tok.Cancelled() {
			// Dequeued after Stop: the item belongs to a later generation
			// or was already discarded.
			if u.gen > gen {
				w.mu.Lock()
				w.carry = &u
				w.mu.Unlock()
			}
			break
		}
		if !ok {
			w.mu.Lock()
			wasSpeaking := w.speaking && !tok.Cancelled()
			if wasSpeaking {
				w.speaking = false
			}
			w.mu.Unlock()
			if wasSpeaking {
				metrics.WorkerActive("synthesis", false)
				w.notify.Status("Ready")
				w.notify.StateChanged()
			}
			continue
		}
		metrics.QueueDepth("utterance", w.queue.Len())
		w.speak(tok, u)
	}

	w.mu.Lock()
	w.speaking = false
	w.mu.Unlock()
	metrics.WorkerActive("synthesis", false)
	w.notify.Status("Ready")
	w.notify.StateChanged()
}

// takeCarry returns an item a cancelled predecessor dequeued on this
// generation's behalf.
func (w *SynthesisWorker) takeCarry(gen uint64) (Utterance, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.carry == nil || w.carry.gen > gen {
		return Utterance{}, false
	}
	u := *w.carry
	w.carry = nil
	return u, u.gen == gen
}

// acquire returns the engine for u, creating it if needed, and marks the
// worker speaking. It returns nil when the item must be skipped.
func (w *SynthesisWorker) acquire(tok *Token, u Utterance) (Engine, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if tok.Cancelled() {
		return nil, nil
	}
	if w.engine == nil {
		eng, err := w.factory()
		if err != nil {
			return nil, fmt.Errorf("engine init failed: %w", err)
		}
		w.engine = eng
	}
	w.inflight = w.engine
	w.speaking = true
	return w.engine, nil
}

func (w *SynthesisWorker) speak(tok *Token, u Utterance) {
	eng, err := w.acquire(tok, u)
	if err != nil {
		log.Errorf("speech %s: %v", u.ID, err)
		log.Utterance(u.ID, len(u.Text), 0, "init_failed")
		metrics.Utterance("init_failed")
		w.notify.Error("TTS Error", err)
		return
	}
	if eng == nil {
		return
	}
	metrics.WorkerActive("synthesis", true)
	w.notify.Status("Speaking...")
	w.notify.StateChanged()

	start := time.Now()
	err = eng.Speak(w.ctx, u.Text)
	elapsed := time.Since(start)

	w.mu.Lock()
	w.inflight = nil
	// Stop already took the handle; closing it is ours.
	orphaned := w.engine != eng
	cancelled := tok.Cancelled()
	if err != nil && !cancelled && !orphaned {
		w.engine = nil
		orphaned = true
	}
	w.mu.Unlock()

	switch {
	case err == nil:
		log.Utterance(u.ID, len(u.Text), elapsed, "played")
		metrics.Utterance("played")
	case cancelled:
		log.Utterance(u.ID, len(u.Text), elapsed, "aborted")
		metrics.Utterance("aborted")
	default:
		log.Errorf("speech %s failed: %v", u.ID, err)
		log.Utterance(u.ID, len(u.Text), elapsed, "failed")
		metrics.Utterance("failed")
		w.notify.Error("TTS Error", err)
		w.notify.Status("TTS error.")
	}

	if orphaned {
		eng.Close()
	}
}

// Stop cancels the running generation, discards queued items, interrupts
// playback and drops the engine so the next item gets a fresh one.
func (w *SynthesisWorker) Stop() {
	w.mu.Lock()
	if w.token != nil {
		w.token.Cancel()
	}
	eng := w.engine
	idle := eng != nil && w.inflight != eng
	w.engine = nil
	w.carry = nil
	w.speaking = false
	w.queue.Clear()
	w.mu.Unlock()

	metrics.QueueDepth("utterance", 0)
	if eng != nil {
		eng.Stop()
		if idle {
			eng.Close()
		}
	}
	w.notify.Status("Stopped.")
	w.notify.StateChanged()
}

// Wait blocks until the current generation, if any, has exited.
func (w *SynthesisWorker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops the worker, waits for its loop and releases the engine.
func (w *SynthesisWorker) Close() {
	w.mu.Lock()
	if w.token != nil {
		w.token.Cancel()
	}
	eng := w.engine
	idle := eng != nil && w.inflight != eng
	w.engine = nil
	w.carry = nil
	w.queue.Clear()
	w.mu.Unlock()

	if eng != nil {
		eng.Stop()
	}
	w.Wait()
	if idle {
		eng.Close()
	}
}
