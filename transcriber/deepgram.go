package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"voxnote/encoder"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	baseTranscriber
	apiKey string
}

func NewDeepgram(apiKey string) *Deepgram {
	return newDeepgram(apiKey, deepgramAPIURL)
}

func newDeepgram(apiKey, apiURL string) *Deepgram {
	return &Deepgram{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(apiURL),
			apiURL: apiURL,
			lang:   "en",
		},
		apiKey: apiKey,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Recognize(ctx context.Context, pcm []byte) (string, error) {
	return recognize(ctx, d.Name(), encoder.FormatFLAC, pcm, d.transcribe)
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) requestURL() string {
	q := url.Values{}
	q.Set("model", "nova-3")
	q.Set("smart_format", "true")
	if d.lang != "" {
		q.Set("language", d.lang)
	}
	return d.apiURL + "?" + q.Encode()
}

func (d *Deepgram) transcribe(ctx context.Context, audioData []byte, format encoder.Format) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.requestURL(), bytes.NewReader(audioData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", format.ContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Provider: d.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(resp.Body))}
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	return &Result{
		Text:       text,
		Metrics:    resp.Metrics,
		RateLimit:  remaining + "/" + limit,
		Confidence: confidence,
		Duration:   dgResp.Metadata.Duration,
	}, nil
}
