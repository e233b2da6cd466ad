package chatgate

import "time"

// Reason strings attached to quota decisions.
const (
	ReasonQuotaExceeded = "quota exceeded"
)

// Decision is the outcome of a quota check.
type Decision struct {
	Allow      bool
	Reason     string
	RolledOver bool // the usage window was reset during this check
}

// Evaluate decides whether a new request may proceed for the given record.
//
// The window rollover happens before the limit check, so a stale record never
// blocks unfairly: when now is more than window past WindowStart, RequestCount
// is reset to zero and WindowStart is refreshed on the record. Paid users
// always pass. Otherwise the request is denied once RequestCount has reached
// freeLimit, meaning a user gets at most freeLimit requests per window.
//
// Evaluate mutates only the rollover fields; persisting the record is the
// caller's concern.
func Evaluate(rec *UsageRecord, now time.Time, freeLimit int, window time.Duration) Decision {
	var rolled bool
	if now.Sub(rec.WindowStart) > window {
		rec.RequestCount = 0
		rec.WindowStart = now
		rolled = true
	}

	if rec.Paid {
		return Decision{Allow: true, RolledOver: rolled}
	}

	if rec.RequestCount >= freeLimit {
		return Decision{Reason: ReasonQuotaExceeded, RolledOver: rolled}
	}

	return Decision{Allow: true, RolledOver: rolled}
}
