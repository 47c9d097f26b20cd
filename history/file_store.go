package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scribe/log"
)

// FileStore keeps the whole history as one JSON array and rewrites it on
// every change. Writes go to a temp file that is renamed over the target,
// so a crash leaves either the old or the new array on disk. The mutex
// serializes writers in this process only.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Append(_ context.Context, e Entry) (bool, error) {
	e.Content = strings.TrimSpace(e.Content)
	if e.Content == "" {
		return false, nil
	}
	if e.Timestamp == "" {
		e.Timestamp = NewEntry("").Timestamp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(true)
	if err != nil {
		return false, err
	}
	entries = append(entries, e)
	if err := s.write(entries); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) List(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(false)
	if err != nil {
		return nil, err
	}
	return tail(entries, limit), nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write([]Entry{})
}

func (s *FileStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Path: s.path}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	st.FileExists = true
	st.SizeKB = float64(info.Size()) / 1024

	entries, err := s.load(false)
	if err != nil {
		return st, err
	}
	st.TotalEntries = len(entries)
	for _, e := range entries {
		st.TotalCharacters += len([]rune(e.Content))
	}
	if len(entries) > 0 {
		first, last := entries[0], entries[len(entries)-1]
		st.First, st.Last = &first, &last
	}
	return st, nil
}

func (s *FileStore) Close() error { return nil }

// load reads the collection. A missing, empty or unparsable file reads as
// empty; with setAside the unparsable file is moved to <path>.corrupt so
// the next write does not destroy it silently. Any other read failure is
// returned, since writing after it would replace history we could not see.
func (s *FileStore) load(setAside bool) ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warnf("history: %s is corrupt, starting fresh: %v", s.path, err)
		if setAside {
			if err := os.Rename(s.path, s.path+".corrupt"); err != nil {
				log.Warnf("history: keeping corrupt copy: %v", err)
			}
		}
		return nil, nil
	}
	return entries, nil
}

func (s *FileStore) write(entries []Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("history: create dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("history: temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("history: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("history: replace: %w", err)
	}
	return nil
}
