package chatgate

import "context"

// GenerateRequest is the uniform request handed to a model provider adapter.
type GenerateRequest struct {
	Messages []Message
}

// Provider is the interface that model provider adapters must implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama", "gemini").
	Name() string

	// Generate produces one complete assistant reply for the given messages.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// StreamingProvider is implemented by adapters whose backend streams partial
// tokens. The model gateway drains the stream and concatenates all fragments
// into one final text; callers never see partial output.
type StreamingProvider interface {
	Provider

	// GenerateStream starts a streaming completion.
	GenerateStream(ctx context.Context, req GenerateRequest) (Stream, error)
}

// Stream yields text fragments. Next returns io.EOF when the stream is done.
type Stream interface {
	Next() (string, error)

	// Close releases resources and signals completion.
	Close() error
}
