package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"voxnote/audio"
	"voxnote/beep"
	"voxnote/config"
	"voxnote/control"
	"voxnote/listen"
	"voxnote/log"
	"voxnote/queue"
	"voxnote/speech"
	"voxnote/storage"
	"voxnote/transcriber"
	"voxnote/worker"
)

// appDeps are the resolved collaborators. A nil transcriber or speech
// factory leaves the matching worker unavailable rather than failing
// startup, so the editor stays usable.
type appDeps struct {
	audio       audio.Context
	device      *audio.DeviceInfo
	transcriber transcriber.Transcriber
	speech      speech.Factory
	listen      listen.Config
	capture     worker.CaptureConfig
}

type app struct {
	cfg    *config.Config
	deps   appDeps
	orch   *control.Orchestrator
	store  *storage.Store
	cues   *beep.Player
	cancel context.CancelFunc

	chunks     int
	utterances atomic.Int64
}

// resolveDeps builds the real providers from cfg. Failures are returned
// as warnings; the app starts without the missing capability.
func resolveDeps(cfg *config.Config, actx audio.Context) (appDeps, []error) {
	var warnings []error
	deps := appDeps{
		audio:   actx,
		listen:  listen.DefaultConfig(),
		capture: worker.DefaultCaptureConfig(),
	}

	if actx != nil {
		dev, err := audio.FindDevice(actx, cfg.Device)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w; using system default", err))
		}
		deps.device = dev
	}

	t, err := transcriber.New(cfg.ASR, transcriber.Keys{
		Groq:     cfg.GroqAPIKey,
		OpenAI:   cfg.OpenAIAPIKey,
		Deepgram: cfg.DeepgramAPIKey,
	})
	if err != nil {
		warnings = append(warnings, err)
	} else {
		if cfg.Language != "" {
			t.SetLanguage(cfg.Language)
		}
		if w, ok := t.(transcriber.Warmer); ok {
			w.Warm()
		}
		deps.transcriber = t
	}

	f, err := speech.NewFactory(cfg.TTS, speech.Options{
		Voice:     cfg.Voice,
		Rate:      cfg.Rate,
		OpenAIKey: cfg.OpenAIAPIKey,
		Audio:     actx,
	})
	if err != nil {
		warnings = append(warnings, err)
	} else {
		deps.speech = f
	}
	return deps, warnings
}

func newApp(cfg *config.Config, deps appDeps, notify worker.Notifier) (*app, error) {
	store, err := storage.New(cfg.NotesDir)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, deps: deps, store: store, cues: beep.New(deps.audio)}
	if !cfg.Beep {
		a.cues.Disable()
	}
	notify = &cueNotifier{Notifier: notify, cues: a.cues}

	var open worker.OpenFunc
	if deps.audio != nil {
		mic := listen.NewMicrophone(deps.audio, deps.device, deps.listen)
		open = func() (worker.Listener, error) {
			s, err := mic.Open()
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	var rec worker.Recognizer
	if deps.transcriber != nil {
		rec = deps.transcriber
	}
	var engines worker.EngineFactory
	if deps.speech != nil {
		f := deps.speech
		engines = func() (worker.Engine, error) { return f() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	transcripts := queue.New[string](cfg.TranscriptQueueSize)
	utterances := queue.New[worker.Utterance](cfg.UtteranceQueueSize)
	capture := worker.NewCaptureWorker(open, rec, transcripts, notify, deps.capture)
	synth := worker.NewSynthesisWorker(ctx, engines, utterances, notify)

	a.orch = control.NewOrchestrator(ctx, capture, synth, control.NewPoller(transcripts), store, notify)
	a.orch.SetCues(a.cues)
	return a, nil
}

func (a *app) asrName() string {
	if a.deps.transcriber == nil {
		return "none"
	}
	name := a.deps.transcriber.Name()
	if lang := a.deps.transcriber.GetLanguage(); lang != "" {
		name += " (" + lang + ")"
	}
	return name
}

func (a *app) ttsName() string {
	if a.deps.speech == nil {
		return "none"
	}
	if a.cfg.TTS != "" {
		return a.cfg.TTS
	}
	return "auto"
}

func (a *app) deviceName() string {
	if a.deps.audio == nil {
		return "none"
	}
	if a.deps.device == nil {
		return "system default"
	}
	return a.deps.device.Name
}

// poll must be called from the UI goroutine.
func (a *app) poll(doc control.Document) int {
	n := a.orch.Poll(doc)
	a.chunks += n
	return n
}

// speak hands text to the orchestrator, which reports blank text.
func (a *app) speak(text string) {
	queued := strings.TrimSpace(text) != "" && a.orch.Buttons().Speak
	if a.orch.Speak(text) == nil && queued {
		a.utterances.Add(1)
	}
}

func (a *app) shutdown() {
	a.orch.Shutdown()
	a.cancel()
	a.cues.Wait()
	log.SessionEnd(a.chunks, int(a.utterances.Load()))
}

// cueNotifier plays the error cue when the microphone fails.
type cueNotifier struct {
	worker.Notifier
	cues *beep.Player
}

func (n *cueNotifier) Error(title string, err error) {
	if title == "Microphone Error" {
		n.cues.Error()
	}
	n.Notifier.Error(title, err)
}
