// Package mock provides a scripted model provider for testing.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/ineyio/chatgate"
)

// Provider is a mock model provider.
type Provider struct {
	mu      sync.Mutex
	name    string
	reply   string
	err     error
	calls   int
	lastReq chatgate.GenerateRequest
}

var _ chatgate.Provider = (*Provider)(nil)

// Option configures a mock Provider.
type Option func(*Provider)

// New creates a mock provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		name:  "mock",
		reply: "Hello from mock provider",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithReply sets the reply text.
func WithReply(reply string) Option {
	return func(p *Provider) { p.reply = reply }
}

// WithError makes the provider always return this error.
func WithError(err error) Option {
	return func(p *Provider) { p.err = err }
}

func (p *Provider) Name() string { return p.name }

// Generate returns the scripted reply or error.
func (p *Provider) Generate(_ context.Context, req chatgate.GenerateRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	p.lastReq = req
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

// SetError makes subsequent calls return err.
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns how many times the provider was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastRequest returns the most recent request seen by the provider.
func (p *Provider) LastRequest() chatgate.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

// Streaming is a mock provider whose reply arrives as streamed fragments.
type Streaming struct {
	*Provider
	fragments []string
}

var _ chatgate.StreamingProvider = (*Streaming)(nil)

// NewStreaming creates a streaming mock that yields the given fragments.
func NewStreaming(fragments []string, opts ...Option) *Streaming {
	return &Streaming{Provider: New(opts...), fragments: fragments}
}

// GenerateStream streams the scripted fragments.
func (p *Streaming) GenerateStream(_ context.Context, req chatgate.GenerateRequest) (chatgate.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &stream{fragments: p.fragments}, nil
}

type stream struct {
	fragments []string
	pos       int
}

func (s *stream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *stream) Close() error { return nil }
