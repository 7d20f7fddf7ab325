// Package speech provides blocking text-to-speech engines.
package speech

import (
	"context"
	"errors"
	"fmt"

	"voxnote/audio"
)

// ErrAborted is returned by Speak when Stop interrupted playback.
var ErrAborted = errors.New("speech aborted")

// ErrNoEngine means no engine could be configured.
var ErrNoEngine = errors.New("no text-to-speech engine available")

// Engine speaks one text at a time. Stop may be called from any goroutine
// and makes a running Speak return promptly.
type Engine interface {
	Speak(ctx context.Context, text string) error
	Stop()
	Close() error
}

// Factory creates a fresh engine; called lazily and again after an engine
// has been invalidated.
type Factory func() (Engine, error)

type Options struct {
	Voice     string
	Rate      int // words per minute, espeak only
	OpenAIKey string
	Audio     audio.Context
}

// NewFactory resolves a named engine ("espeak", "openai") or, when name is
// empty, openai if a key is set and espeak otherwise.
func NewFactory(name string, opts Options) (Factory, error) {
	if name == "" {
		name = "espeak"
		if opts.OpenAIKey != "" && opts.Audio != nil {
			name = "openai"
		}
	}

	switch name {
	case "espeak":
		bin, err := findEspeak()
		if err != nil {
			return nil, err
		}
		return func() (Engine, error) {
			return NewEspeak(bin, opts.Voice, opts.Rate)
		}, nil
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrNoEngine)
		}
		if opts.Audio == nil {
			return nil, fmt.Errorf("openai: %w (no audio output)", ErrNoEngine)
		}
		return func() (Engine, error) {
			return NewOpenAI(opts.OpenAIKey, opts.Voice, opts.Audio)
		}, nil
	default:
		return nil, fmt.Errorf("unknown text-to-speech engine %q", name)
	}
}
