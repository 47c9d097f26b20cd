package encoder

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps mono 16-bit PCM in a RIFF/WAVE container. The wav
// encoder needs to seek back to patch chunk sizes, so the payload is
// staged in a temp file that is removed before returning.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "scribe-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := writeWAV(f, pcm, sampleRate); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// WriteWAVFile writes mono 16-bit PCM to path.
func WriteWAVFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeWAV(f, pcm, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWAV(w io.WriteSeeker, pcm []byte, sampleRate int) error {
	samples := Samples(pcm)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(w, sampleRate, BitsPerSample, Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

var ErrUnsupportedWAV = errors.New("unsupported wav file")

// DecodeWAV reads a 16-bit PCM WAV and returns mono little-endian PCM
// and its sample rate. Multi-channel input is averaged down to mono.
func DecodeWAV(r io.ReadSeeker) ([]byte, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedWAV)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav: %w", err)
	}
	if d.BitDepth != BitsPerSample {
		return nil, 0, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, d.BitDepth)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	samples := make([]int16, len(buf.Data)/channels)
	for i := range samples {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = int16(sum / channels)
	}
	return PCM(samples), int(d.SampleRate), nil
}

func DecodeWAVFile(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return DecodeWAV(f)
}
