// Package beep plays short synthesized cues through an audio.Context.
package beep

import (
	"math"
	"sync"

	"voxnote/audio"
	"voxnote/log"
)

const (
	sampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Player is safe for concurrent use. Cues never block the caller; a cue
// requested while another is playing is dropped.
type Player struct {
	ctx      audio.Context
	disabled bool

	once     sync.Once
	startPCM []byte
	endPCM   []byte
	errorPCM []byte

	mu      sync.Mutex
	playing bool
	wg      sync.WaitGroup
}

func New(ctx audio.Context) *Player {
	return &Player{ctx: ctx, disabled: ctx == nil}
}

func (p *Player) Disable() { p.disabled = true }

func (p *Player) init() {
	p.startPCM = audio.Bytes(generateTick(sampleRate, startFreq, 0.2, startVolume, startDecay))
	p.endPCM = audio.Bytes(generateTick(sampleRate, endFreq, 0.2, endVolume, endDecay))
	p.errorPCM = audio.Bytes(generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay))
}

func (p *Player) Start() { p.play(func() []byte { return p.startPCM }) }
func (p *Player) End()   { p.play(func() []byte { return p.endPCM }) }
func (p *Player) Error() { p.play(func() []byte { return p.errorPCM }) }

// Wait blocks until the cue in flight, if any, has finished.
func (p *Player) Wait() { p.wg.Wait() }

func (p *Player) play(pick func() []byte) {
	if p.disabled {
		return
	}
	p.once.Do(p.init)

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
			p.wg.Done()
		}()
		dev, err := p.ctx.NewPlayback(audio.PlaybackConfig{SampleRate: sampleRate, Channels: 1})
		if err != nil {
			log.Warnf("beep playback error: %v", err)
			return
		}
		defer dev.Close()
		if err := dev.Play(pick()); err != nil {
			log.Warnf("beep playback error: %v", err)
		}
	}()
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
