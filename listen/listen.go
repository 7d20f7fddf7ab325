// Package listen segments a live microphone stream into phrases using a
// calibrated energy threshold.
package listen

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"voxnote/audio"
	"voxnote/encoder"
	"voxnote/log"
	"voxnote/metrics"
)

// ErrWaitTimeout is returned by Listen when no phrase started in time.
// It is not a hardware failure.
var ErrWaitTimeout = errors.New("listening timed out while waiting for phrase to start")

// ErrStalled means the device stopped delivering audio.
var ErrStalled = errors.New("microphone stopped delivering audio")

var ErrClosed = errors.New("microphone stream closed")

type Config struct {
	SampleRate uint32

	// MinThreshold is the floor for the RMS speech threshold (0..1).
	MinThreshold float64
	// Ratio scales ambient energy into the speech threshold.
	Ratio float64
	// Damping controls how fast the threshold follows ambient energy;
	// applied per second of audio.
	Damping float64
	// Dynamic keeps adjusting the threshold while waiting for speech.
	Dynamic bool

	// PauseThreshold is the silence that ends a phrase.
	PauseThreshold time.Duration
	// PhraseMin discards bursts of sound shorter than this.
	PhraseMin time.Duration
	// PreRoll is the audio kept from before speech onset.
	PreRoll time.Duration

	// StallTimeout is the wall-clock time without any audio after which
	// the device is considered failed.
	StallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:     encoder.SampleRate,
		MinThreshold:   0.01,
		Ratio:          1.5,
		Damping:        0.15,
		Dynamic:        true,
		PauseThreshold: 800 * time.Millisecond,
		PhraseMin:      300 * time.Millisecond,
		PreRoll:        500 * time.Millisecond,
		StallTimeout:   2 * time.Second,
	}
}

// Microphone opens streams on one capture device.
type Microphone struct {
	ctx    audio.Context
	device *audio.DeviceInfo
	cfg    Config
}

// NewMicrophone uses the system default device when device is nil.
func NewMicrophone(ctx audio.Context, device *audio.DeviceInfo, cfg Config) *Microphone {
	return &Microphone{ctx: ctx, device: device, cfg: cfg}
}

func (m *Microphone) Open() (*Stream, error) {
	capture, err := m.ctx.NewCapture(m.device, audio.CaptureConfig{
		SampleRate: m.cfg.SampleRate,
		Channels:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("opening microphone: %w", err)
	}

	s := &Stream{
		capture:   capture,
		cfg:       m.cfg,
		chunks:    make(chan []byte, 256),
		done:      make(chan struct{}),
		threshold: m.cfg.MinThreshold,
	}
	capture.SetCallback(s.onData)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return nil, fmt.Errorf("starting microphone: %w", err)
	}
	log.Infof("microphone opened: %s", capture.DeviceName())
	return s, nil
}

// Stream is an open microphone. Calibrate and Listen must be called from
// a single goroutine.
type Stream struct {
	capture audio.CaptureDevice
	cfg     Config
	chunks  chan []byte
	done    chan struct{}

	closeOnce sync.Once
	threshold float64
}

func (s *Stream) onData(data []byte, _ uint32) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	select {
	case s.chunks <- chunk:
	default:
		metrics.DroppedChunk()
	}
}

func (s *Stream) Threshold() float64 { return s.threshold }

func (s *Stream) DeviceName() string { return s.capture.DeviceName() }

func (s *Stream) next() ([]byte, error) {
	select {
	case c := <-s.chunks:
		return c, nil
	case <-s.done:
		return nil, ErrClosed
	case <-time.After(s.cfg.StallTimeout):
		return nil, ErrStalled
	}
}

func (s *Stream) duration(chunk []byte) time.Duration {
	return time.Duration(audio.Duration(chunk, s.cfg.SampleRate) * float64(time.Second))
}

func (s *Stream) adjust(energy float64, d time.Duration) {
	damping := math.Pow(s.cfg.Damping, d.Seconds())
	target := energy * s.cfg.Ratio
	s.threshold = s.threshold*damping + target*(1-damping)
	if s.threshold < s.cfg.MinThreshold {
		s.threshold = s.cfg.MinThreshold
	}
}

// Calibrate reads d of audio and sets the speech threshold from the
// ambient level.
func (s *Stream) Calibrate(d time.Duration) error {
	var elapsed time.Duration
	for elapsed < d {
		chunk, err := s.next()
		if err != nil {
			return fmt.Errorf("calibrating: %w", err)
		}
		cd := s.duration(chunk)
		elapsed += cd
		s.adjust(audio.RMS(chunk), cd)
	}
	log.Infof("microphone calibrated: threshold=%.4f", s.threshold)
	return nil
}

// Listen blocks until one phrase has been captured and returns its PCM.
// timeout bounds the wait for speech to start and phraseLimit bounds the
// phrase itself, both in audio time; zero disables either bound.
func (s *Stream) Listen(timeout, phraseLimit time.Duration) ([]byte, error) {
	var waited time.Duration
	for {
		preroll, err := s.waitForSpeech(&waited, timeout)
		if err != nil {
			return nil, err
		}
		phrase, voiced, err := s.collect(preroll, phraseLimit)
		if err != nil {
			return nil, err
		}
		if voiced >= s.cfg.PhraseMin {
			return phrase, nil
		}
	}
}

func (s *Stream) waitForSpeech(waited *time.Duration, timeout time.Duration) ([][]byte, error) {
	var preroll [][]byte
	var prerollDur time.Duration
	for {
		chunk, err := s.next()
		if err != nil {
			return nil, err
		}
		cd := s.duration(chunk)
		*waited += cd
		if timeout > 0 && *waited > timeout {
			return nil, ErrWaitTimeout
		}

		preroll = append(preroll, chunk)
		prerollDur += cd
		for len(preroll) > 1 && prerollDur-s.duration(preroll[0]) >= s.cfg.PreRoll {
			prerollDur -= s.duration(preroll[0])
			preroll = preroll[1:]
		}

		energy := audio.RMS(chunk)
		if energy > s.threshold {
			return preroll, nil
		}
		if s.cfg.Dynamic {
			s.adjust(energy, cd)
		}
	}
}

// collect returns the phrase and how much of it was above threshold.
func (s *Stream) collect(preroll [][]byte, phraseLimit time.Duration) ([]byte, time.Duration, error) {
	var phrase []byte
	var phraseDur time.Duration
	for _, c := range preroll {
		phrase = append(phrase, c...)
		phraseDur += s.duration(c)
	}

	// The onset chunk is the last preroll chunk and counts as voiced.
	voiced := s.duration(preroll[len(preroll)-1])
	var pause time.Duration
	var trailing int

	for {
		if phraseLimit > 0 && phraseDur >= phraseLimit {
			break
		}
		chunk, err := s.next()
		if err != nil {
			return nil, 0, err
		}
		cd := s.duration(chunk)
		phrase = append(phrase, chunk...)
		phraseDur += cd

		if audio.RMS(chunk) > s.threshold {
			voiced += cd
			pause = 0
			trailing = 0
		} else {
			pause += cd
			trailing += len(chunk)
		}
		if pause > s.cfg.PauseThreshold {
			break
		}
	}

	// Keep at most PreRoll of trailing silence.
	keep := int(s.cfg.PreRoll.Seconds()*float64(s.cfg.SampleRate)) * 2
	if trailing > keep {
		phrase = phrase[:len(phrase)-(trailing-keep)]
	}
	return phrase, voiced, nil
}

func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.capture.ClearCallback()
		s.capture.Stop()
		s.capture.Close()
	})
}
