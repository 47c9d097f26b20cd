package encoder

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/mewkiz/flac"
)

func sine(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return samples
}

func TestFlacEncoder(t *testing.T) {
	samples := sine(SampleRate * 2)

	enc, err := NewFlac(SampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	var totalFed uint64
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		block := samples[i:end]
		if err := enc.EncodeBlock(block); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		totalFed += uint64(len(block))
	}

	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != totalFed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), totalFed)
	}

	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	rawSize := len(samples) * 2
	t.Logf("Raw: %d bytes, FLAC: %d bytes (%.1f%% compression)",
		rawSize, len(flacData), (1-float64(len(flacData))/float64(rawSize))*100)
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(SampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.EncodeBlock(nil); err != nil {
		t.Fatalf("EncodeBlock(nil): %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderPartialBlock(t *testing.T) {
	enc, err := NewFlac(0)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i % 1000)
	}

	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}
}

func TestEncodeFormats(t *testing.T) {
	pcm := PCM(sine(SampleRate / 2))
	for _, tt := range []struct {
		format, want, magic string
	}{
		{"flac", FormatFLAC, "fLaC"},
		{"", FormatFLAC, "fLaC"},
		{"wav", FormatWAV, "RIFF"},
	} {
		t.Run(tt.format, func(t *testing.T) {
			got, err := Encode(pcm, SampleRate, tt.format)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got.Format != tt.want {
				t.Errorf("Format = %q, want %q", got.Format, tt.want)
			}
			if string(got.Data[:4]) != tt.magic {
				t.Errorf("payload starts with %q, want %q", got.Data[:4], tt.magic)
			}
			if got.Frames != uint64(len(pcm)/2) {
				t.Errorf("Frames = %d, want %d", got.Frames, len(pcm)/2)
			}
		})
	}
	t.Run("unknown", func(t *testing.T) {
		if _, err := Encode(pcm, SampleRate, "ogg"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestFlacIsLossless(t *testing.T) {
	want := sine(BlockSize*2 + 123)
	data, frames, err := encodeFLAC(PCM(want), SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if frames != uint64(len(want)) {
		t.Errorf("frames = %d, want %d", frames, len(want))
	}

	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if stream.Info.SampleRate != SampleRate || stream.Info.NChannels != 1 {
		t.Errorf("stream info = %+v", stream.Info)
	}
	var got []int16
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ParseNext: %v", err)
		}
		for _, s := range f.Subframes[0].Samples {
			got = append(got, int16(s))
		}
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEncodeBlockSplitsLongInput(t *testing.T) {
	enc, err := NewFlac(SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeBlock(sine(BlockSize*3 + 1)); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if enc.TotalFrames() != BlockSize*3+1 {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}
}
