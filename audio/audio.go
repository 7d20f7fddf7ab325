package audio

import (
	"encoding/binary"
	"math"
	"strings"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives little-endian signed 16-bit PCM.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type PlaybackConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayback(config PlaybackConfig) (PlaybackDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// PlaybackDevice plays one buffer at a time. Play blocks until the buffer
// has been handed to the output or Abort is called; audio already queued
// in the sink may still be heard briefly after an abort.
type PlaybackDevice interface {
	Play(pcm []byte) error
	Abort()
	Close()
}

// RMS returns the root-mean-square level of 16-bit PCM, normalized to 0..1.
func RMS(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}

// Samples converts little-endian 16-bit PCM bytes to samples.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Bytes is the inverse of Samples.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Duration in seconds of mono 16-bit PCM at the given rate.
func Duration(pcm []byte, sampleRate uint32) float64 {
	if sampleRate == 0 {
		return 0
	}
	return float64(len(pcm)/2) / float64(sampleRate)
}
