// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/vfchat/internal/model"
)

// ErrNoTranscript is returned by Latest when nothing was saved for a user.
var ErrNoTranscript = errors.New("no transcript saved")

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id       TEXT NOT NULL,
    session_id    TEXT NOT NULL,
    saved_at      INTEGER NOT NULL,
    messages_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_user ON transcripts(user_id, saved_at);
`

// SQLiteStore keeps transcripts in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Saver. Partial messages are stored as they are.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts (user_id, session_id, saved_at, messages_json) VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.SessionID, savedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	return nil
}

// Latest returns the newest transcript saved for userID.
func (s *SQLiteStore) Latest(ctx context.Context, userID string) (Record, error) {
	var (
		rec     Record
		savedAt int64
		data    string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, session_id, saved_at, messages_json FROM transcripts
		 WHERE user_id = ? ORDER BY saved_at DESC, id DESC LIMIT 1`, userID)
	if err := row.Scan(&rec.UserID, &rec.SessionID, &savedAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNoTranscript
		}
		return Record{}, fmt.Errorf("failed to query transcript: %w", err)
	}

	var msgs []model.Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return Record{}, fmt.Errorf("failed to parse stored messages: %w", err)
	}
	rec.Messages = msgs
	rec.SavedAt = time.Unix(0, savedAt)
	return rec, nil
}

// Count returns how many transcripts are stored for userID.
func (s *SQLiteStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
