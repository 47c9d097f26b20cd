package encoder

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestWAVFileKeepsSamples(t *testing.T) {
	want := sine(1600)
	path := filepath.Join(t.TempDir(), "clip.wav")

	if err := WriteWAVFile(path, PCM(want), SampleRate); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	pcm, rate, err := DecodeWAVFile(path)
	if err != nil {
		t.Fatalf("DecodeWAVFile: %v", err)
	}
	if rate != SampleRate {
		t.Errorf("sample rate = %d, want %d", rate, SampleRate)
	}
	if !bytes.Equal(pcm, PCM(want)) {
		t.Errorf("decoded %d bytes differ from the %d written", len(pcm), len(want)*2)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	data, err := EncodeWAV(PCM(sine(160)), 8000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad header: %q", data[:12])
	}
	_, rate, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 8000 {
		t.Errorf("rate = %d, want 8000", rate)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, _, err := DecodeWAV(strings.NewReader("definitely not a wav file, just text"))
	if !errors.Is(err, ErrUnsupportedWAV) {
		t.Fatalf("err = %v, want ErrUnsupportedWAV", err)
	}
}

func TestSamplesIgnoresOddByte(t *testing.T) {
	got := Samples([]byte{0x01, 0x00, 0xff})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Samples = %v, want [1]", got)
	}
}
