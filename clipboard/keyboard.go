package clipboard

import (
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// shortcut is the platform paste chord.
type shortcut struct {
	name  string
	apply func(kb *keybd_event.KeyBonding)
	// settle is how long a fresh virtual keyboard needs before the OS
	// delivers its events.
	settle time.Duration
}

var keyboard = sync.OnceValues(func() (*keybd_event.KeyBonding, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	time.Sleep(pasteShortcut.settle)
	return &kb, nil
})

// Init creates the virtual keyboard. It is safe to call repeatedly and
// from several goroutines.
func Init() error {
	_, err := keyboard()
	return err
}

// Paste sends the paste shortcut to the focused window.
func Paste() error {
	kb, err := keyboard()
	if err != nil {
		return err
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	pasteShortcut.apply(kb)
	return kb.Launching()
}

// Verify reports whether the keystroke path is usable without pressing
// anything.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK (" + pasteShortcut.name + ")", nil
}
