//go:build !darwin && !linux

package clipboard

import "github.com/micmonay/keybd_event"

var pasteShortcut = shortcut{
	name:  "Ctrl+V",
	apply: func(kb *keybd_event.KeyBonding) { kb.HasCTRL(true) },
}
