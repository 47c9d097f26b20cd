package dictation

import (
	"fmt"
	"time"
)

type State int

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type StatusKind int

const (
	StatusRecording StatusKind = iota
	StatusProcessing
	StatusTranscribing
	StatusDone
	StatusNoSpeech
	StatusCanceled
	StatusWarning
	StatusError
)

// Status is one notification sent to the Observer. Message carries the
// detail for warnings and errors.
type Status struct {
	Kind        StatusKind
	Message     string
	UtteranceID string
	Time        time.Time
}

func (s Status) String() string {
	switch s.Kind {
	case StatusRecording:
		return "Recording..."
	case StatusProcessing:
		return "Processing..."
	case StatusTranscribing:
		return "Transcribing..."
	case StatusDone:
		return "Done"
	case StatusNoSpeech:
		return "No speech detected"
	case StatusCanceled:
		return "Canceled"
	case StatusWarning:
		return "Warning: " + s.Message
	case StatusError:
		return "Error: " + s.Message
	default:
		return s.Message
	}
}

// Terminal reports whether s ends a cycle.
func (s Status) Terminal() bool {
	switch s.Kind {
	case StatusDone, StatusNoSpeech, StatusCanceled, StatusError:
		return true
	}
	return false
}

type Observer interface {
	OnStatus(Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Status)

func (f ObserverFunc) OnStatus(s Status) { f(s) }

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeNoSpeech Outcome = "no_speech"
	OutcomeError    Outcome = "error"
	OutcomeCanceled Outcome = "canceled"
)

// Utterance is the record of one capture cycle.
type Utterance struct {
	ID           string
	CreatedAt    time.Time
	AudioSeconds float64
	Raw          string
	Text         string
	Language     string
	Engine       string
	Outcome      Outcome
	Saved        bool
	Pasted       bool
	Warnings     []string
	Err          error
}
