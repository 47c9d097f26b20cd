// Package clipboard places refined text on the system clipboard and
// sends the platform paste shortcut to the focused application.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	cb "github.com/atotto/clipboard"
)

var ErrPaste = errors.New("paste failed")

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Sink copies text and, after Delay, simulates the paste shortcut. The
// delay gives the clipboard owner time to publish the new contents.
type Sink struct {
	Delay time.Duration
}

func NewSink(delay time.Duration) *Sink {
	return &Sink{Delay: delay}
}

func (s *Sink) Copy(text string) error {
	if err := Copy(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

func (s *Sink) Paste(ctx context.Context) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := Paste(); err != nil {
		return fmt.Errorf("%w: %v", ErrPaste, err)
	}
	return nil
}
