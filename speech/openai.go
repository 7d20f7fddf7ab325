package speech

import (
	"context"
	"fmt"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"voxnote/audio"
)

// openAISampleRate is fixed for the "pcm" response format.
const openAISampleRate = 24000

type OpenAI struct {
	client   *openai.Client
	voice    openai.SpeechVoice
	playback audio.PlaybackDevice

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool // set by Stop, never cleared
}

func NewOpenAI(apiKey, voice string, ctx audio.Context) (*OpenAI, error) {
	return newOpenAI(openai.NewClient(apiKey), voice, ctx)
}

func newOpenAI(client *openai.Client, voice string, ctx audio.Context) (*OpenAI, error) {
	pb, err := ctx.NewPlayback(audio.PlaybackConfig{SampleRate: openAISampleRate, Channels: 1})
	if err != nil {
		return nil, fmt.Errorf("opening playback: %w", err)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{client: client, voice: openai.SpeechVoice(voice), playback: pb}, nil
}

func (o *OpenAI) Speak(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		cancel()
		return ErrAborted
	}
	o.cancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
		cancel()
	}()

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		if o.wasAborted() {
			return ErrAborted
		}
		return fmt.Errorf("openai speech: %w", err)
	}
	pcm, err := io.ReadAll(resp)
	resp.Close()
	if err != nil {
		if o.wasAborted() {
			return ErrAborted
		}
		return fmt.Errorf("reading openai speech: %w", err)
	}
	if o.wasAborted() {
		return ErrAborted
	}

	if err := o.playback.Play(pcm); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	if o.wasAborted() {
		return ErrAborted
	}
	return nil
}

func (o *OpenAI) wasAborted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// Stop aborts the running utterance and makes later Speak calls return
// ErrAborted.
func (o *OpenAI) Stop() {
	o.mu.Lock()
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Unlock()
	o.playback.Abort()
}

func (o *OpenAI) Close() error {
	o.Stop()
	o.playback.Close()
	return nil
}
