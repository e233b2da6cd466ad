// Package postgres provides a PostgreSQL-backed UsageStore.
//
// Records live in a single table keyed by user_id, suitable for deployments
// where several bot processes share one database. The transcript is stored as
// JSON, optionally encrypted at rest.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/chatgate"
)

// Store is a PostgreSQL-backed UsageStore.
type Store struct {
	pool   *pgxpool.Pool
	table  string
	cipher *chatgate.Cipher
}

var _ chatgate.UsageStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTable sets the table name (default "chatgate_users").
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithCipher enables transcript encryption at rest.
func WithCipher(c *chatgate.Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

// New creates a PostgreSQL-backed UsageStore on an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:  pool,
		table: "chatgate_users",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the required table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id TEXT PRIMARY KEY,
			request_count INTEGER NOT NULL DEFAULT 0,
			window_start TIMESTAMPTZ NOT NULL,
			paid BOOLEAN NOT NULL DEFAULT false,
			transcript BYTEA NOT NULL,
			selected_provider TEXT NOT NULL DEFAULT ''
		)
	`, s.table)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("chatgate/postgres: ensure schema: %w", err)
	}
	return nil
}

// GetOrCreate loads the user's record, inserting a zero record on first
// contact.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*chatgate.UsageRecord, error) {
	rec := &chatgate.UsageRecord{UserID: userID}
	var transcript []byte

	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT request_count, window_start, paid, transcript, selected_provider
			FROM %s WHERE user_id = $1`, s.table),
		userID,
	).Scan(&rec.RequestCount, &rec.WindowStart, &rec.Paid, &transcript, &rec.SelectedProvider)

	if err == pgx.ErrNoRows {
		rec = chatgate.NewUsageRecord(userID, time.Now().UTC())
		blob, err := s.encodeTranscript(rec.Transcript)
		if err != nil {
			return nil, err
		}
		// ON CONFLICT keeps creation race-safe across processes.
		_, err = s.pool.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (user_id, request_count, window_start, paid, transcript, selected_provider)
				VALUES ($1, 0, $2, false, $3, '')
				ON CONFLICT (user_id) DO NOTHING`, s.table),
			userID, rec.WindowStart, blob)
		if err != nil {
			return nil, fmt.Errorf("chatgate/postgres: create record: %w", err)
		}
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatgate/postgres: load record: %w", err)
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

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, request_count, window_start, paid, transcript, selected_provider)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO UPDATE SET
				request_count = EXCLUDED.request_count,
				window_start = EXCLUDED.window_start,
				paid = EXCLUDED.paid,
				transcript = EXCLUDED.transcript,
				selected_provider = EXCLUDED.selected_provider`, s.table),
		rec.UserID, rec.RequestCount, rec.WindowStart, rec.Paid, blob, rec.SelectedProvider)
	if err != nil {
		return fmt.Errorf("chatgate/postgres: save record: %w", err)
	}
	return nil
}

func (s *Store) encodeTranscript(t chatgate.Transcript) ([]byte, error) {
	if t == nil {
		t = chatgate.Transcript{}
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("chatgate/postgres: marshal transcript: %w", err)
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
			return nil, fmt.Errorf("chatgate/postgres: decrypt transcript: %w", err)
		}
	}
	var t chatgate.Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("chatgate/postgres: unmarshal transcript: %w", err)
	}
	return t, nil
}
