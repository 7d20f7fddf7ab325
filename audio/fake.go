package audio

import (
	"os"
	"sync"
	"time"

	"voxnote/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a fixed PCM buffer as microphone input and records
// everything sent to playback. Used by tests and the headless mode.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// StartErr, when set, is returned by every capture Start.
	StartErr error

	mu     sync.Mutex
	played [][]byte
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContext(data, realtime), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, startErr: f.StartErr, audioDone: make(chan struct{})}, nil
}

func (f *FakeContext) NewPlayback(config PlaybackConfig) (PlaybackDevice, error) {
	return &FakePlayback{owner: f, config: config}, nil
}

// Played returns copies of the buffers handed to playback, in order.
func (f *FakeContext) Played() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.played))
	copy(out, f.played)
	return out
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	startErr  error
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	}

	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		audioFinished := false

		for {
			select {
			case <-f.stopCh:
				return
			default:
			}

			cb := f.callback()
			if cb == nil {
				time.Sleep(time.Millisecond)
				continue
			}

			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else {
				if !audioFinished {
					audioFinished = true
					close(f.audioDone)
				}
				cb(silence, fakeFrameSize)
			}

			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() { f.Stop() }

// FakePlayback records each buffer and blocks for its real duration
// unless aborted.
type FakePlayback struct {
	owner  *FakeContext
	config PlaybackConfig

	mu    sync.Mutex
	abort chan struct{}
}

func (p *FakePlayback) Play(pcm []byte) error {
	p.owner.mu.Lock()
	p.owner.played = append(p.owner.played, append([]byte(nil), pcm...))
	p.owner.mu.Unlock()

	abort := make(chan struct{})
	p.mu.Lock()
	p.abort = abort
	p.mu.Unlock()

	rate := p.config.SampleRate
	if rate == 0 {
		rate = encoder.SampleRate
	}
	d := time.Duration(Duration(pcm, rate) * float64(time.Second))
	select {
	case <-time.After(d):
	case <-abort:
	}
	return nil
}

func (p *FakePlayback) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.abort != nil {
		select {
		case <-p.abort:
		default:
			close(p.abort)
		}
	}
}

func (p *FakePlayback) Close() { p.Abort() }
