package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrNoMatch means the provider answered but heard no words.
var ErrNoMatch = errors.New("no speech recognized")

var ErrNoProvider = errors.New("no speech recognition provider configured")

// ServiceError wraps any provider failure other than ErrNoMatch.
type ServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text       string
	Metrics    *NetworkMetrics
	RateLimit  string
	Confidence float64
	Duration   float64
}

// Transcriber turns one phrase of mono 16-bit PCM at encoder.SampleRate
// into text. Implementations are safe for use by a single goroutine.
type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Recognize(ctx context.Context, pcm []byte) (string, error)
}

type baseTranscriber struct {
	client   *TracedClient
	apiURL   string
	lang     string
	warmOnce sync.Once
}

// Warmer is implemented by providers that can pre-connect.
type Warmer interface {
	Warm()
}

// Warm pre-connects in the background, once per transcriber.
func (b *baseTranscriber) Warm() {
	if b.client == nil {
		return
	}
	b.warmOnce.Do(func() { go b.client.Warm() })
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// Keys holds provider credentials; empty means not configured.
type Keys struct {
	Groq     string
	OpenAI   string
	Deepgram string
}

// New returns the named provider, or the first configured one when name
// is empty (deepgram, groq, then openai).
func New(name string, keys Keys) (Transcriber, error) {
	switch name {
	case "deepgram":
		if keys.Deepgram == "" {
			return nil, fmt.Errorf("deepgram: %w (set DEEPGRAM_API_KEY)", ErrNoProvider)
		}
		return NewDeepgram(keys.Deepgram), nil
	case "groq":
		if keys.Groq == "" {
			return nil, fmt.Errorf("groq: %w (set GROQ_API_KEY)", ErrNoProvider)
		}
		return NewGroq(keys.Groq), nil
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrNoProvider)
		}
		return NewOpenAI(keys.OpenAI), nil
	case "":
	default:
		return nil, fmt.Errorf("unknown speech recognition provider %q", name)
	}

	switch {
	case keys.Deepgram != "":
		return NewDeepgram(keys.Deepgram), nil
	case keys.Groq != "":
		return NewGroq(keys.Groq), nil
	case keys.OpenAI != "":
		return NewOpenAI(keys.OpenAI), nil
	}
	return nil, fmt.Errorf("%w: set DEEPGRAM_API_KEY, GROQ_API_KEY or OPENAI_API_KEY", ErrNoProvider)
}
