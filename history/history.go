// Package history keeps a log of refined dictation results.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Entry is one persisted dictation. The JSON form is
// {"timestamp": ..., "content": ...}; the optional fields are omitted
// when empty.
type Entry struct {
	Timestamp     string    `json:"timestamp"`
	Content       string    `json:"content"`
	Transcription string    `json:"transcription,omitempty"`
	Metadata      *Metadata `json:"metadata,omitempty"`
}

type Metadata struct {
	ID        string  `json:"id,omitempty"`
	DurationS float64 `json:"duration_s,omitempty"`
	Engine    string  `json:"engine,omitempty"`
	Language  string  `json:"language,omitempty"`
}

func NewEntry(content string) Entry {
	return Entry{Timestamp: time.Now().Format(time.RFC3339), Content: content}
}

type Stats struct {
	TotalEntries    int     `json:"total_entries"`
	FileExists      bool    `json:"file_exists"`
	Path            string  `json:"file_path"`
	First           *Entry  `json:"first_entry,omitempty"`
	Last            *Entry  `json:"last_entry,omitempty"`
	TotalCharacters int     `json:"total_characters"`
	SizeKB          float64 `json:"file_size_kb"`
}

// Store is implemented by FileStore and SQLiteStore.
//
// Append trims the content and reports false without error when nothing
// is left.
// List returns the newest limit entries in insertion order, or all of
// them when limit <= 0.
type Store interface {
	Append(ctx context.Context, e Entry) (bool, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return NewFileStore(path), nil
	case BackendSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

// Export writes every entry of s to w as an indented JSON array.
func Export(ctx context.Context, s Store, w io.Writer) error {
	entries, err := s.List(ctx, 0)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func tail(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}
