package clipboard

import "github.com/micmonay/keybd_event"

var pasteShortcut = shortcut{
	name:  "Cmd+V",
	apply: func(kb *keybd_event.KeyBonding) { kb.HasSuper(true) },
}
