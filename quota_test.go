package chatgate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ineyio/chatgate"
)

func TestEvaluate_AllowsBelowLimit(t *testing.T) {
	now := time.Now()
	rec := &chatgate.UsageRecord{UserID: "u1", RequestCount: 19, WindowStart: now}

	d := chatgate.Evaluate(rec, now, 20, 24*time.Hour)
	assert.True(t, d.Allow)
	assert.False(t, d.RolledOver)
}

func TestEvaluate_DeniesAtLimit(t *testing.T) {
	now := time.Now()
	rec := &chatgate.UsageRecord{UserID: "u1", RequestCount: 20, WindowStart: now}

	d := chatgate.Evaluate(rec, now, 20, 24*time.Hour)
	assert.False(t, d.Allow)
	assert.Equal(t, chatgate.ReasonQuotaExceeded, d.Reason)
	assert.Equal(t, 20, rec.RequestCount)
}

func TestEvaluate_PaidAlwaysAllowed(t *testing.T) {
	now := time.Now()
	rec := &chatgate.UsageRecord{UserID: "u1", RequestCount: 1000, WindowStart: now, Paid: true}

	d := chatgate.Evaluate(rec, now, 20, 24*time.Hour)
	assert.True(t, d.Allow)
}

// A record blocked yesterday is allowed today without an explicit reset call:
// the rollover happens inside Evaluate, before the limit check.
func TestEvaluate_WindowRolloverBeforeLimitCheck(t *testing.T) {
	now := time.Now()
	rec := &chatgate.UsageRecord{
		UserID:       "u3",
		RequestCount: 20,
		WindowStart:  now.Add(-25 * time.Hour),
	}

	d := chatgate.Evaluate(rec, now, 20, 24*time.Hour)
	assert.True(t, d.Allow)
	assert.True(t, d.RolledOver)
	assert.Equal(t, 0, rec.RequestCount)
	assert.Equal(t, now, rec.WindowStart)
}

func TestEvaluate_ExactWindowBoundaryDoesNotRoll(t *testing.T) {
	now := time.Now()
	rec := &chatgate.UsageRecord{
		UserID:       "u1",
		RequestCount: 5,
		WindowStart:  now.Add(-24 * time.Hour),
	}

	d := chatgate.Evaluate(rec, now, 20, 24*time.Hour)
	assert.True(t, d.Allow)
	assert.False(t, d.RolledOver)
	assert.Equal(t, 5, rec.RequestCount)
}

// freeLimit 0 expresses deployments where unpaid users are blocked
// immediately.
func TestEvaluate_ZeroFreeLimitBlocksUnpaid(t *testing.T) {
	now := time.Now()
	rec := &chatgate.UsageRecord{UserID: "u1", WindowStart: now}

	d := chatgate.Evaluate(rec, now, 0, 24*time.Hour)
	assert.False(t, d.Allow)

	rec.Paid = true
	d = chatgate.Evaluate(rec, now, 0, 24*time.Hour)
	assert.True(t, d.Allow)
}
