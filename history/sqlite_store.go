package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps entries in a single table. Unlike FileStore, appends
// do not rewrite earlier rows.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		content TEXT NOT NULL,
		transcription TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT ''
	);`)
	if err != nil {
		return fmt.Errorf("history: create table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Append(ctx context.Context, e Entry) (bool, error) {
	e.Content = strings.TrimSpace(e.Content)
	if e.Content == "" {
		return false, nil
	}
	if e.Timestamp == "" {
		e.Timestamp = NewEntry("").Timestamp
	}
	var meta string
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return false, err
		}
		meta = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (timestamp, content, transcription, metadata) VALUES (?, ?, ?, ?)`,
		e.Timestamp, e.Content, e.Transcription, meta)
	if err != nil {
		return false, fmt.Errorf("history: insert: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT timestamp, content, transcription, metadata FROM history ORDER BY id ASC`
	var args []any
	if limit > 0 {
		query = `SELECT timestamp, content, transcription, metadata FROM
			(SELECT id, timestamp, content, transcription, metadata FROM history ORDER BY id DESC LIMIT ?)
			ORDER BY id ASC`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var meta string
		if err := rows.Scan(&e.Timestamp, &e.Content, &e.Transcription, &meta); err != nil {
			return nil, err
		}
		if meta != "" {
			var m Metadata
			if err := json.Unmarshal([]byte(meta), &m); err == nil {
				e.Metadata = &m
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM history")
	return err
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Path: s.path}
	if info, err := os.Stat(s.path); err == nil {
		st.FileExists = true
		st.SizeKB = float64(info.Size()) / 1024
	} else if !errors.Is(err, os.ErrNotExist) {
		return st, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(LENGTH(content)), 0) FROM history`)
	if err := row.Scan(&st.TotalEntries, &st.TotalCharacters); err != nil {
		return st, err
	}
	if st.TotalEntries == 0 {
		return st, nil
	}

	first, err := s.edge(ctx, "ASC")
	if err != nil {
		return st, err
	}
	last, err := s.edge(ctx, "DESC")
	if err != nil {
		return st, err
	}
	st.First, st.Last = first, last
	return st, nil
}

func (s *SQLiteStore) edge(ctx context.Context, order string) (*Entry, error) {
	var e Entry
	row := s.db.QueryRowContext(ctx,
		`SELECT timestamp, content, transcription FROM history ORDER BY id `+order+` LIMIT 1`)
	if err := row.Scan(&e.Timestamp, &e.Content, &e.Transcription); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
