package transcriber

import (
	"context"
	"sync"
	"time"
)

type FakeResult struct {
	Text string
	Err  error
}

// Fake replays scripted results in order, then reports ErrNoMatch.
type Fake struct {
	// Delay simulates a provider round trip; honours ctx.
	Delay time.Duration

	mu      sync.Mutex
	results []FakeResult
	calls   int
	lang    string
}

func NewFake(results ...FakeResult) *Fake {
	return &Fake{results: results}
}

// NewFakeText scripts one successful recognition per text.
func NewFakeText(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.results = append(f.results, FakeResult{Text: t})
	}
	return f
}

func (f *Fake) Name() string            { return "fake" }
func (f *Fake) SetLanguage(lang string) { f.lang = lang }
func (f *Fake) GetLanguage() string     { return f.lang }

func (f *Fake) Recognize(ctx context.Context, pcm []byte) (string, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", &ServiceError{Provider: f.Name(), Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return "", ErrNoMatch
	}
	r := f.results[0]
	f.results = f.results[1:]
	if r.Err != nil {
		return "", r.Err
	}
	if r.Text == "" {
		return "", ErrNoMatch
	}
	return r.Text, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
