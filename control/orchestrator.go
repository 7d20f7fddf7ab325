package control

import (
	"context"
	"errors"
	"fmt"

	"voxnote/log"
	"voxnote/storage"
	"voxnote/worker"
)

type Capture interface {
	Start(ctx context.Context) error
	Stop() bool
	Listening() bool
	Wait()
}

type Synthesis interface {
	Enqueue(text string) error
	Stop()
	Speaking() bool
	Pending() int
	Close()
}

// Cues are audible feedback for recording start and end.
type Cues interface {
	Start()
	End()
}

type noCues struct{}

func (noCues) Start() {}
func (noCues) End()   {}

// Orchestrator turns user commands into worker calls. All methods must be
// called from the UI goroutine.
type Orchestrator struct {
	ctx     context.Context
	capture Capture
	synth   Synthesis
	poller  *Poller
	store   *storage.Store
	notify  worker.Notifier
	cues    Cues
}

func NewOrchestrator(ctx context.Context, capture Capture, synth Synthesis, poller *Poller, store *storage.Store, notify worker.Notifier) *Orchestrator {
	if notify == nil {
		notify = worker.NopNotifier
	}
	return &Orchestrator{
		ctx:     ctx,
		capture: capture,
		synth:   synth,
		poller:  poller,
		store:   store,
		notify:  notify,
		cues:    noCues{},
	}
}

func (o *Orchestrator) SetCues(c Cues) {
	if c == nil {
		c = noCues{}
	}
	o.cues = c
}

func (o *Orchestrator) Buttons() Buttons {
	return ComputeButtons(o.capture.Listening(), o.synth.Speaking(), o.synth.Pending())
}

func (o *Orchestrator) missing(what string, err error) {
	o.notify.Error("Missing Dependency", fmt.Errorf("%s is not available: %w", what, err))
}

// Record starts continuous capture; a no-op while already listening.
func (o *Orchestrator) Record() error {
	if o.capture.Listening() {
		return nil
	}
	if err := o.capture.Start(o.ctx); err != nil {
		if errors.Is(err, worker.ErrCapabilityUnavailable) {
			o.missing("speech recognition", err)
		} else {
			o.notify.Error("Listening Error", err)
		}
		return err
	}
	o.cues.Start()
	log.Info("recording started")
	return nil
}

// Speak queues the document text. Ignored while listening, matching the
// disabled Speak button.
func (o *Orchestrator) Speak(text string) error {
	if !o.Buttons().Speak {
		return nil
	}
	err := o.synth.Enqueue(text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, worker.ErrCapabilityUnavailable):
		o.missing("text to speech", err)
	case errors.Is(err, worker.ErrQueueFull):
		o.notify.Status("Speech queue is full.")
	default:
		o.notify.Error("TTS Error", err)
	}
	return err
}

// Stop stops listening and speaking independently; both may fire.
func (o *Orchestrator) Stop() {
	stopped := false
	if o.capture.Stop() {
		stopped = true
		o.cues.End()
		o.notify.Status("Stopping listening...")
		log.Info("recording stopped")
	}
	if o.synth.Speaking() || o.synth.Pending() > 0 {
		stopped = true
		o.synth.Stop()
	}
	if !stopped {
		o.notify.Status("Nothing to stop.")
		return
	}
	o.notify.StateChanged()
}

// Poll moves recognized text into doc; see Poller.Tick.
func (o *Orchestrator) Poll(doc Document) int {
	return o.poller.Tick(doc)
}

func (o *Orchestrator) DefaultName() string { return o.store.DefaultName() }

func (o *Orchestrator) Save(doc Document, name string) error {
	p, err := o.store.Save(name, doc.Text())
	if err != nil {
		log.Errorf("save failed: %v", err)
		o.notify.Error("Save Error", err)
		o.notify.Status("Save failed.")
		return err
	}
	o.notify.Status("Saved to " + p)
	return nil
}

// ErrUnrepresentable means the editor would alter the note text (tabs,
// the editor line limit), so saving it again would corrupt the file.
var ErrUnrepresentable = errors.New("note cannot be edited without changing its text")

// Load replaces doc with the named note; doc is untouched on failure.
func (o *Orchestrator) Load(doc Document, name string) error {
	text, p, err := o.store.Load(name)
	if err != nil {
		log.Errorf("load failed: %v", err)
		o.notify.Error("Load Error", err)
		o.notify.Status("Load failed.")
		return err
	}
	prev := doc.Text()
	doc.SetText(text)
	if doc.Text() != text {
		doc.SetText(prev)
		err = fmt.Errorf("%s: %w", p, ErrUnrepresentable)
		log.Errorf("load failed: %v", err)
		o.notify.Error("Load Error", err)
		o.notify.Status("Load failed.")
		return err
	}
	o.notify.Status("Loaded: " + p)
	return nil
}

// Notes lists saved notes for the load dialog.
func (o *Orchestrator) Notes() ([]string, error) {
	names, err := o.store.List()
	if err != nil {
		o.notify.Error("Load Error", err)
		o.notify.Status("Load failed.")
		return nil, err
	}
	return names, nil
}

func (o *Orchestrator) New(doc Document) {
	doc.SetText("")
	o.notify.Status("Cleared.")
}

// Shutdown stops both workers and waits for them to exit.
func (o *Orchestrator) Shutdown() {
	o.capture.Stop()
	o.synth.Close()
	o.capture.Wait()
}
