package chatgate

import "time"

// Meter observes session events for monitoring/logging.
type Meter interface {
	// OnMessage is called when an inbound message enters the generation path.
	OnMessage(event MessageEvent)

	// OnDeny is called when a request is denied by the quota policy.
	OnDeny(event DenyEvent)

	// OnResult is called with the outcome of a generation attempt.
	OnResult(event ResultEvent)
}

// MessageEvent describes an accepted inbound message.
type MessageEvent struct {
	UserID        string
	Provider      string
	RequestCount  int
	TranscriptLen int
}

// DenyEvent describes a quota denial.
type DenyEvent struct {
	UserID       string
	Reason       string
	RequestCount int
}

// ResultEvent describes the outcome of a generation attempt.
type ResultEvent struct {
	UserID   string
	Provider string
	Success  bool
	Duration time.Duration
	ReplyLen int
	Error    error
}
