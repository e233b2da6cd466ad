package chatgate

import "context"

// UsageStore is the sole mutation path for persisted per-user state.
//
// GetOrCreate never errors because of a missing user: first contact creates a
// zero record (RequestCount 0, Paid false, empty transcript). Save persists
// every mutable field synchronously; the triggering operation is not complete
// until the write has returned.
type UsageStore interface {
	GetOrCreate(ctx context.Context, userID string) (*UsageRecord, error)
	Save(ctx context.Context, rec *UsageRecord) error
}
