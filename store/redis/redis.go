// Package redis provides a Redis-backed UsageStore.
//
// Each user's record is one Redis hash. The transcript field holds JSON,
// optionally encrypted at rest.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ineyio/chatgate"
)

// Store is a Redis-backed UsageStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
	cipher    *chatgate.Cipher
}

var _ chatgate.UsageStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets the Redis key prefix (default "chatgate:user:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithCipher enables transcript encryption at rest.
func WithCipher(c *chatgate.Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

// New creates a Redis-backed UsageStore.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "chatgate:user:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) userKey(userID string) string {
	return s.keyPrefix + userID
}

// GetOrCreate loads the user's hash, creating a zero record on first contact.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (*chatgate.UsageRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("chatgate/redis: load record: %w", err)
	}

	if len(fields) == 0 {
		rec := chatgate.NewUsageRecord(userID, time.Now().UTC())
		if err := s.Save(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	rec := &chatgate.UsageRecord{
		UserID:           userID,
		Paid:             fields["paid"] == "1",
		SelectedProvider: fields["selected_provider"],
	}
	rec.RequestCount, err = strconv.Atoi(fields["request_count"])
	if err != nil {
		return nil, fmt.Errorf("chatgate/redis: parse request_count: %w", err)
	}
	rec.WindowStart, err = time.Parse(time.RFC3339Nano, fields["window_start"])
	if err != nil {
		return nil, fmt.Errorf("chatgate/redis: parse window_start: %w", err)
	}
	rec.Transcript, err = s.decodeTranscript([]byte(fields["transcript"]))
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

	paid := "0"
	if rec.Paid {
		paid = "1"
	}

	err = s.client.HSet(ctx, s.userKey(rec.UserID),
		"request_count", strconv.Itoa(rec.RequestCount),
		"window_start", rec.WindowStart.Format(time.RFC3339Nano),
		"paid", paid,
		"transcript", string(blob),
		"selected_provider", rec.SelectedProvider,
	).Err()
	if err != nil {
		return fmt.Errorf("chatgate/redis: save record: %w", err)
	}
	return nil
}

func (s *Store) encodeTranscript(t chatgate.Transcript) ([]byte, error) {
	if t == nil {
		t = chatgate.Transcript{}
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("chatgate/redis: marshal transcript: %w", err)
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
			return nil, fmt.Errorf("chatgate/redis: decrypt transcript: %w", err)
		}
	}
	var t chatgate.Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("chatgate/redis: unmarshal transcript: %w", err)
	}
	return t, nil
}
