// Package chatgate implements the quota and session layer of a chat bot:
// per-user usage records, a rolling free-tier quota, bounded conversation
// transcripts, and gateways over pluggable model and payment providers.
package chatgate

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Inbound is one text message received from a user.
type Inbound struct {
	UserID string
	Text   string
}

// Outbound is the single reply produced for an inbound message.
type Outbound struct {
	Text string
}

// UsageRecord is the durable per-user state: quota consumption, entitlement,
// conversation transcript, and the user's model provider choice.
type UsageRecord struct {
	UserID           string
	RequestCount     int
	WindowStart      time.Time
	Paid             bool
	Transcript       Transcript
	SelectedProvider string
}

// Clone returns a deep copy of the record. Stores hand out clones so callers
// never share transcript slices with persisted state.
func (r *UsageRecord) Clone() *UsageRecord {
	c := *r
	c.Transcript = make(Transcript, len(r.Transcript))
	copy(c.Transcript, r.Transcript)
	return &c
}

// NewUsageRecord returns the zero-value record created on first contact.
func NewUsageRecord(userID string, now time.Time) *UsageRecord {
	return &UsageRecord{
		UserID:      userID,
		WindowStart: now,
	}
}
