package main

import (
	"testing"

	"scribe/beep"
	"scribe/dictation"
)

func TestCueFor(t *testing.T) {
	tests := []struct {
		kind dictation.StatusKind
		want beep.Cue
		ok   bool
	}{
		{dictation.StatusRecording, beep.CueStart, true},
		{dictation.StatusProcessing, beep.CueEnd, true},
		{dictation.StatusError, beep.CueError, true},
		{dictation.StatusTranscribing, 0, false},
		{dictation.StatusDone, 0, false},
		{dictation.StatusNoSpeech, 0, false},
		{dictation.StatusCanceled, 0, false},
		{dictation.StatusWarning, 0, false},
	}
	for _, tt := range tests {
		got, ok := cueFor(dictation.Status{Kind: tt.kind})
		if ok != tt.ok || got != tt.want {
			t.Errorf("cueFor(%v) = %v, %v; want %v, %v", dictation.Status{Kind: tt.kind}, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFanOutWithCues(t *testing.T) {
	var played []beep.Cue
	var seen []string
	obs := fanOut(
		cueObserver(func(c beep.Cue) { played = append(played, c) }),
		nil,
		dictation.ObserverFunc(func(s dictation.Status) { seen = append(seen, s.String()) }),
	)
	for _, k := range []dictation.StatusKind{dictation.StatusRecording, dictation.StatusProcessing, dictation.StatusTranscribing, dictation.StatusDone} {
		obs.OnStatus(dictation.Status{Kind: k})
	}
	if len(played) != 2 || played[0] != beep.CueStart || played[1] != beep.CueEnd {
		t.Errorf("played = %v", played)
	}
	if len(seen) != 4 || seen[3] != "Done" {
		t.Errorf("seen = %v", seen)
	}
}
