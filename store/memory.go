// Package store provides the in-memory UsageStore used in tests and
// single-process deployments without durability requirements.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/ineyio/chatgate"
)

// Memory is an in-memory UsageStore.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*chatgate.UsageRecord
}

var _ chatgate.UsageStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*chatgate.UsageRecord)}
}

// GetOrCreate returns a copy of the user's record, creating a zero record on
// first contact.
func (s *Memory) GetOrCreate(_ context.Context, userID string) (*chatgate.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = chatgate.NewUsageRecord(userID, time.Now().UTC())
		s.records[userID] = rec
	}
	return rec.Clone(), nil
}

// Save persists all mutable fields of the record.
func (s *Memory) Save(_ context.Context, rec *chatgate.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.UserID] = rec.Clone()
	return nil
}
