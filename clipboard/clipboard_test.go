package clipboard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasteShortcut(t *testing.T) {
	if pasteShortcut.name == "" || pasteShortcut.apply == nil {
		t.Fatalf("shortcut not configured: %+v", pasteShortcut)
	}
}

func TestSinkPasteHonoursContext(t *testing.T) {
	s := NewSink(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Paste(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Paste = %v, want context.Canceled", err)
	}
}
