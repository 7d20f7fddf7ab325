package encoder

import (
	"encoding/binary"
	"fmt"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format is the container an utterance is uploaded in.
type Format string

const (
	FormatFLAC Format = "flac"
	FormatWAV  Format = "wav"
)

func (f Format) Ext() string { return "." + string(f) }

func (f Format) ContentType() string {
	switch f {
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

// Encode wraps mono 16-bit PCM at SampleRate in the given container.
func Encode(format Format, pcm []byte) ([]byte, error) {
	switch format {
	case FormatFLAC:
		return EncodeFLAC(pcm)
	case FormatWAV:
		return EncodeWAV(pcm, SampleRate), nil
	default:
		return nil, fmt.Errorf("unknown audio format %q", format)
	}
}

// EncodeWAV prepends a canonical 44-byte PCM header.
func EncodeWAV(pcm []byte, sampleRate uint32) []byte {
	const headerSize = 44
	out := make([]byte, headerSize+len(pcm))
	byteRate := sampleRate * Channels * BitsPerSample / 8

	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:], Channels)
	binary.LittleEndian.PutUint32(out[24:], sampleRate)
	binary.LittleEndian.PutUint32(out[28:], byteRate)
	binary.LittleEndian.PutUint16(out[32:], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(out[34:], BitsPerSample)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[headerSize:], pcm)
	return out
}
