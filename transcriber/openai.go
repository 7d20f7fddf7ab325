package transcriber

import (
	"bytes"
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"voxnote/encoder"
)

const openaiAPIURL = "https://api.openai.com/v1"

type OpenAI struct {
	baseTranscriber
	client *openai.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return newOpenAIWithBaseURL(apiKey, openaiAPIURL)
}

func newOpenAIWithBaseURL(apiKey, baseURL string) *OpenAI {
	traced := NewTracedClient(baseURL + "/models")
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = streamingDoer{c: traced}
	return &OpenAI{
		baseTranscriber: baseTranscriber{client: traced, apiURL: baseURL},
		client:          openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Recognize(ctx context.Context, pcm []byte) (string, error) {
	return recognize(ctx, o.Name(), encoder.FormatWAV, pcm, o.transcribe)
}

func (o *OpenAI) transcribe(ctx context.Context, audioData []byte, format encoder.Format) (*Result, error) {
	m := &NetworkMetrics{}
	resp, err := o.client.CreateTranscription(withMetrics(ctx, m), openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "audio" + format.Ext(),
		Reader:   bytes.NewReader(audioData),
		Language: o.lang,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ServiceError{Provider: o.Name(), StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		return nil, err
	}
	return &Result{Text: resp.Text, Metrics: m}, nil
}
