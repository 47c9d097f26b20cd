package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

// Samples converts little-endian 16-bit PCM to samples. A trailing odd
// byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// PCM is the inverse of Samples.
func PCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Encoded is an upload-ready audio payload.
type Encoded struct {
	Data       []byte
	Format     string
	Frames     uint64
	EncodeTime time.Duration
}

// Encode renders mono PCM in the given container format. An empty format
// means FLAC.
func Encode(pcm []byte, sampleRate int, format string) (*Encoded, error) {
	start := time.Now()
	out := &Encoded{Format: format}
	var err error
	switch format {
	case FormatFLAC, "":
		out.Format = FormatFLAC
		out.Data, out.Frames, err = encodeFLAC(pcm, sampleRate)
	case FormatWAV:
		out.Data, err = EncodeWAV(pcm, sampleRate)
		out.Frames = uint64(len(pcm) / 2)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	out.EncodeTime = time.Since(start)
	return out, nil
}
