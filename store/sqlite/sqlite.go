// Package sqlite provides a SQLite-backed UsageStore.
//
// Records live in a single users table keyed by user_id. The transcript is
// stored as JSON, optionally encrypted at rest when a cipher is configured.
// A single long-lived pooled connection is used; there is no per-call
// open/close.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ineyio/chatgate"
)

// Store is a SQLite-backed UsageStore.
type Store struct {
	db     *sql.DB
	cipher *chatgate.Cipher
}

var _ chatgate.UsageStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithCipher enables transcript encryption at rest.
func WithCipher(c *chatgate.Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

// New opens (or creates) the database at path and ensures the schema.
func New(path string, opts ...Option) (*Store, error) {
	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("chatgate/sqlite: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("chatgate/sqlite: ping database: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		window_start TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		transcript BLOB NOT NULL,
		selected_provider TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("chatgate/sqlite: create schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// GetOrCreate loads the user's record, inserting a zero record on first
// contact.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*chatgate.UsageRecord, error) {
	var (
		rec        = &chatgate.UsageRecord{UserID: userID}
		window     string
		paid       int
		transcript []byte
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT request_count, window_start, paid, transcript, selected_provider
		 FROM users WHERE user_id = ?`, userID,
	).Scan(&rec.RequestCount, &window, &paid, &transcript, &rec.SelectedProvider)

	if err == sql.ErrNoRows {
		rec = chatgate.NewUsageRecord(userID, time.Now().UTC())
		blob, err := s.encodeTranscript(rec.Transcript)
		if err != nil {
			return nil, err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (user_id, request_count, window_start, paid, transcript, selected_provider)
			 VALUES (?, 0, ?, 0, ?, '')`,
			userID, rec.WindowStart.Format(time.RFC3339Nano), blob)
		if err != nil {
			return nil, fmt.Errorf("chatgate/sqlite: create record: %w", err)
		}
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatgate/sqlite: load record: %w", err)
	}

	rec.Paid = paid != 0
	rec.WindowStart, err = time.Parse(time.RFC3339Nano, window)
	if err != nil {
		return nil, fmt.Errorf("chatgate/sqlite: parse window_start: %w", err)
	}
	rec.Transcript, err = s.decodeTranscript(transcript)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save persists all mutable fields of the record.
func (s *Store) Save(ctx context.Context, rec *chatgate.UsageRecord) error {
	blob, err := s.encodeTranscript(rec.Transcript)
	if err != nil {
		return err
	}

	paid := 0
	if rec.Paid {
		paid = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, request_count, window_start, paid, transcript, selected_provider)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			paid = excluded.paid,
			transcript = excluded.transcript,
			selected_provider = excluded.selected_provider`,
		rec.UserID, rec.RequestCount, rec.WindowStart.Format(time.RFC3339Nano),
		paid, blob, rec.SelectedProvider)
	if err != nil {
		return fmt.Errorf("chatgate/sqlite: save record: %w", err)
	}
	return nil
}

func (s *Store) encodeTranscript(t chatgate.Transcript) ([]byte, error) {
	if t == nil {
		t = chatgate.Transcript{}
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("chatgate/sqlite: marshal transcript: %w", err)
	}
	if s.cipher != nil {
		raw = s.cipher.Seal(raw)
	}
	return raw, nil
}

func (s *Store) decodeTranscript(raw []byte) (chatgate.Transcript, error) {
	var err error
	if s.cipher != nil {
		raw, err = s.cipher.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("chatgate/sqlite: decrypt transcript: %w", err)
		}
	}
	var t chatgate.Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("chatgate/sqlite: unmarshal transcript: %w", err)
	}
	return t, nil
}
