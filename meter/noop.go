package meter

import "github.com/ineyio/chatgate"

// NoopMeter discards all events.
type NoopMeter struct{}

var _ chatgate.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnMessage(chatgate.MessageEvent) {}
func (m *NoopMeter) OnDeny(chatgate.DenyEvent)       {}
func (m *NoopMeter) OnResult(chatgate.ResultEvent)   {}
