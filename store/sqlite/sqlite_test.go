package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/chatgate"
	"github.com/ineyio/chatgate/store/sqlite"
)

func newStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "chatgate.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetOrCreate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, 0, rec.RequestCount)
	assert.False(t, rec.Paid)

	// The second call must return the persisted record, not a new one.
	again, err := s.GetOrCreate(ctx, "alice")
	require.NoError(t, err)
	assert.WithinDuration(t, rec.WindowStart, again.WindowStart, time.Microsecond)
}

func TestStore_SaveRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.GetOrCreate(ctx, "bob")
	require.NoError(t, err)

	rec.RequestCount = 12
	rec.Paid = true
	rec.SelectedProvider = "ollama"
	rec.WindowStart = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	rec.Transcript = chatgate.Transcript{
		{Role: chatgate.RoleSystem, Content: "be brief"},
		{Role: chatgate.RoleUser, Content: "hello"},
		{Role: chatgate.RoleAssistant, Content: "hi there"},
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.GetOrCreate(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 12, got.RequestCount)
	assert.True(t, got.Paid)
	assert.Equal(t, "ollama", got.SelectedProvider)
	assert.True(t, got.WindowStart.Equal(rec.WindowStart))
	assert.Equal(t, rec.Transcript, got.Transcript)
}

func TestStore_SaveUnknownUserInserts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec := chatgate.NewUsageRecord("carol", time.Now().UTC())
	rec.RequestCount = 3
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.GetOrCreate(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 3, got.RequestCount)
}

func TestStore_EncryptedTranscript(t *testing.T) {
	key := chatgate.NewCipherKey()
	cipher, err := chatgate.NewCipher(key)
	require.NoError(t, err)

	s := newStore(t, sqlite.WithCipher(cipher))
	ctx := context.Background()

	rec, err := s.GetOrCreate(ctx, "dave")
	require.NoError(t, err)
	rec.Transcript = chatgate.Transcript{
		{Role: chatgate.RoleUser, Content: "a secret question"},
	}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.GetOrCreate(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, rec.Transcript, got.Transcript)
}
