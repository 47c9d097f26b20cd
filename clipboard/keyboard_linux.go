package clipboard

import (
	"time"

	"github.com/micmonay/keybd_event"
)

// uinput devices are registered asynchronously by udev.
var pasteShortcut = shortcut{
	name:   "Ctrl+V",
	apply:  func(kb *keybd_event.KeyBonding) { kb.HasCTRL(true) },
	settle: 2 * time.Second,
}
