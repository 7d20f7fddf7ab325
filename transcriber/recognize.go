package transcriber

import (
	"context"
	"errors"
	"strings"
	"time"

	"voxnote/encoder"
	"voxnote/log"
)

type transcribeFunc func(ctx context.Context, audio []byte, format encoder.Format) (*Result, error)

// recognize encodes one phrase, sends it, and normalizes the outcome into
// text, ErrNoMatch or *ServiceError.
func recognize(ctx context.Context, provider string, format encoder.Format, pcm []byte, transcribe transcribeFunc) (string, error) {
	encodeStart := time.Now()
	audioData, err := encoder.Encode(format, pcm)
	if err != nil {
		return "", &ServiceError{Provider: provider, Err: err}
	}
	encodeTime := time.Since(encodeStart)

	result, err := transcribe(ctx, audioData, format)
	if err != nil {
		var se *ServiceError
		if errors.As(err, &se) {
			return "", err
		}
		return "", &ServiceError{Provider: provider, Err: err}
	}

	m := log.RecognitionMetrics{
		Provider:  provider,
		Format:    string(format),
		AudioS:    float64(len(pcm)/2) / float64(encoder.SampleRate),
		RawKB:     float64(len(pcm)) / 1024,
		EncodedKB: float64(len(audioData)) / 1024,
		EncodeMs:  float64(encodeTime.Microseconds()) / 1000,
	}
	if nm := result.Metrics; nm != nil {
		m.DNSMs = float64(nm.DNS.Milliseconds())
		m.TLSMs = float64(nm.TLS.Milliseconds())
		m.TTFBMs = float64(nm.TTFB.Milliseconds())
		m.TotalMs = float64(nm.Sum().Milliseconds())
		m.ConnReused = nm.ConnReused
		m.TLSProtocol = nm.TLSProtocol
	}
	log.Recognition(m)

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrNoMatch
	}
	return text, nil
}
