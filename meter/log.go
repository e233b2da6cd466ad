// Package meter provides Meter implementations for observing session events.
package meter

import (
	"log/slog"

	"github.com/ineyio/chatgate"
)

// LogMeter logs session events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ chatgate.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnMessage(e chatgate.MessageEvent) {
	m.Logger.Info("message",
		"user", e.UserID,
		"provider", e.Provider,
		"request_count", e.RequestCount,
		"transcript_len", e.TranscriptLen,
	)
}

func (m *LogMeter) OnDeny(e chatgate.DenyEvent) {
	m.Logger.Info("deny",
		"user", e.UserID,
		"reason", e.Reason,
		"request_count", e.RequestCount,
	)
}

func (m *LogMeter) OnResult(e chatgate.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"user", e.UserID,
			"provider", e.Provider,
			"duration_ms", e.Duration.Milliseconds(),
			"reply_len", e.ReplyLen,
		)
	} else {
		m.Logger.Warn("result_error",
			"user", e.UserID,
			"provider", e.Provider,
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
	}
}
