package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"voxnote/encoder"
)

const groqAPIURL = "https://api.groq.com/openai/v1/audio/transcriptions"

type Groq struct {
	baseTranscriber
	apiKey string
}

func NewGroq(apiKey string) *Groq {
	return newGroq(apiKey, groqAPIURL)
}

func newGroq(apiKey, apiURL string) *Groq {
	return &Groq{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(apiURL),
			apiURL: apiURL,
		},
		apiKey: apiKey,
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) Recognize(ctx context.Context, pcm []byte) (string, error) {
	return recognize(ctx, g.Name(), encoder.FormatFLAC, pcm, g.transcribe)
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

func (g *Groq) transcribe(ctx context.Context, audioData []byte, format encoder.Format) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio"+format.Ext())
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}

	writer.WriteField("model", "whisper-large-v3-turbo")
	writer.WriteField("response_format", "verbose_json")
	if g.lang != "" {
		writer.WriteField("language", g.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, &body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Provider: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(resp.Body))}
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, fmt.Errorf("groq response parse error: %w", err)
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:      gResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
		Duration:  gResp.Duration,
	}, nil
}
