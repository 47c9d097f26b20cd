package beep

import (
	"math"
	"testing"
)

func TestGenerateTick(t *testing.T) {
	s := generateTick(1000, 100, 0.5, 0.5, 10, 2)
	if len(s) != 1000 {
		t.Fatalf("len = %d, want 500 frames x 2 channels", len(s))
	}
	for i := 0; i < len(s); i += 2 {
		if s[i] != s[i+1] {
			t.Fatalf("frame %d: channels differ %d/%d", i/2, s[i], s[i+1])
		}
	}
	if s[0] != 0 {
		t.Errorf("tick should start at a zero crossing, got %d", s[0])
	}
	if peak(s[:100]) <= peak(s[len(s)-100:]) {
		t.Error("tick does not decay")
	}
	if peak(s) > int(math.Ceil(32767*0.5)) {
		t.Errorf("peak %d exceeds volume", peak(s))
	}
}

func TestDoubleBeepHasGap(t *testing.T) {
	s := generateDoubleBeep(1000, 100, 0.1, 0.05, 0.5, 10, 1)
	if len(s) != 100+50+100 {
		t.Fatalf("len = %d", len(s))
	}
	for i := 100; i < 150; i++ {
		if s[i] != 0 {
			t.Fatalf("gap sample %d = %d", i, s[i])
		}
	}
}

func TestSamplesTail(t *testing.T) {
	short := samples(CueStart, 1, 0)
	long := samples(CueStart, 1, 0.2)
	if len(short) != int(float64(sampleRate)*0.03) || len(long) != int(float64(sampleRate)*0.2) {
		t.Errorf("lengths %d/%d", len(short), len(long))
	}
}

func TestDisable(t *testing.T) {
	if !Enabled() {
		t.Fatal("cues start enabled")
	}
	Disable()
	defer disabled.Store(false)
	if Enabled() {
		t.Error("Disable had no effect")
	}
	Play(CueError)
}

func peak(s []int16) int {
	m := 0
	for _, v := range s {
		a := int(v)
		if a < 0 {
			a = -a
		}
		m = max(m, a)
	}
	return m
}

func TestRenderCues(t *testing.T) {
	set := renderCues(2, 0.2)
	if len(set[CueStart]) != int(float64(sampleRate)*0.2)*2 {
		t.Errorf("start cue len = %d", len(set[CueStart]))
	}
	if want := len(generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay, 2)); len(set[CueError]) != want {
		t.Errorf("error cue len = %d, want %d (no tail)", len(set[CueError]), want)
	}
}
