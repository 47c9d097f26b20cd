package main

import (
	"scribe/beep"
	"scribe/dictation"
)

// cueFor maps controller statuses to audible cues.
func cueFor(s dictation.Status) (beep.Cue, bool) {
	switch s.Kind {
	case dictation.StatusRecording:
		return beep.CueStart, true
	case dictation.StatusProcessing:
		return beep.CueEnd, true
	case dictation.StatusError:
		return beep.CueError, true
	}
	return 0, false
}

func cueObserver(play func(beep.Cue)) dictation.Observer {
	return dictation.ObserverFunc(func(s dictation.Status) {
		if c, ok := cueFor(s); ok {
			play(c)
		}
	})
}
