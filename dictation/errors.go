package dictation

import "errors"

var (
	ErrNotIdle      = errors.New("dictation: not idle")
	ErrNotRecording = errors.New("dictation: not recording")
	ErrBusy         = errors.New("dictation: busy processing")
	ErrClosed       = errors.New("dictation: controller closed")
	ErrPanic        = errors.New("dictation: pipeline panic")
)
