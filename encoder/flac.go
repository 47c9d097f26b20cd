package encoder

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder writes a mono 16-bit FLAC stream into memory, one frame per
// block. Blocks go in as verbatim subframes and the library's prediction
// analysis chooses the actual coding.
type FlacEncoder struct {
	buf    bytes.Buffer
	enc    *flac.Encoder
	rate   uint32
	frames uint64
}

func NewFlac(sampleRate int) (*FlacEncoder, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	e := &FlacEncoder{rate: uint32(sampleRate)}
	enc, err := flac.NewEncoder(&e.buf, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    e.rate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("flac: new encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

// EncodeBlock writes block as one frame. Blocks longer than BlockSize are
// split.
func (e *FlacEncoder) EncodeBlock(block []int16) error {
	for len(block) > 0 {
		n := min(len(block), BlockSize)
		if err := e.writeFrame(block[:n]); err != nil {
			return err
		}
		block = block[n:]
	}
	return nil
}

func (e *FlacEncoder) writeFrame(block []int16) error {
	wide := make([]int32, len(block))
	for i, s := range block {
		wide[i] = int32(s)
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    e.rate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   wide,
			NSamples:  len(block),
		}},
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("flac: write frame: %w", err)
	}
	e.frames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error { return e.enc.Close() }

// Bytes is only complete after Close.
func (e *FlacEncoder) Bytes() []byte { return e.buf.Bytes() }

func (e *FlacEncoder) TotalFrames() uint64 { return e.frames }

func encodeFLAC(pcm []byte, sampleRate int) ([]byte, uint64, error) {
	enc, err := NewFlac(sampleRate)
	if err != nil {
		return nil, 0, err
	}
	if err := enc.EncodeBlock(Samples(pcm)); err != nil {
		return nil, 0, err
	}
	if err := enc.Close(); err != nil {
		return nil, 0, fmt.Errorf("flac: close: %w", err)
	}
	return enc.Bytes(), enc.TotalFrames(), nil
}
