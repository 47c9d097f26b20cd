// Package beep plays short audible cues when a recording starts, ends or
// fails.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueError
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

// Play sounds c without blocking. Errors from the audio backend are
// logged and otherwise ignored.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(c)
}

// cueSet holds the rendered waveform for every cue.
type cueSet [CueError + 1][]int16

func renderCues(channels int, tail float64) cueSet {
	var set cueSet
	for c := CueStart; c <= CueError; c++ {
		t := tail
		if c == CueError {
			t = 0
		}
		set[c] = samples(c, channels, t)
	}
	return set
}

// samples renders the waveform for c. tail pads the tick so backends with
// deep buffers play it out completely.
func samples(c Cue, channels int, tail float64) []int16 {
	switch c {
	case CueStart:
		return generateTick(sampleRate, startFreq, max(0.03, tail), startVolume, startDecay, channels)
	case CueEnd:
		return generateTick(sampleRate, endFreq, max(0.05, tail), endVolume, endDecay, channels)
	default:
		return generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay, channels)
	}
}

// generateTick returns an exponentially decaying sine, interleaved over
// channels.
func generateTick(rate int, freq, duration, volume, decay float64, channels int) []int16 {
	n := int(float64(rate) * duration)
	out := make([]int16, n*channels)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = s
		}
	}
	return out
}

func generateDoubleBeep(rate int, freq, beepDur, gapDur, volume, decay float64, channels int) []int16 {
	beep := generateTick(rate, freq, beepDur, volume, decay, channels)
	gap := make([]int16, int(float64(rate)*gapDur)*channels)
	out := make([]int16, 0, len(beep)*2+len(gap))
	out = append(out, beep...)
	out = append(out, gap...)
	out = append(out, beep...)
	return out
}
