package chatgate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// emptyReplyText is substituted when the concatenated provider output is
// empty or whitespace-only.
const emptyReplyText = "Sorry, the model could not generate a response. Please try rephrasing your question."

// ModelGateway routes generation requests to a registry of providers with
// fallback to a designated default on failure.
type ModelGateway struct {
	providers map[string]Provider
	fallback  string
	logger    *slog.Logger
}

// GatewayOption configures a ModelGateway.
type GatewayOption func(*ModelGateway)

// WithGatewayLogger sets the logger used for fallback and decode diagnostics.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *ModelGateway) { g.logger = l }
}

// NewModelGateway creates a gateway over the given providers. fallback names
// the provider used when the selected one fails or is unknown; it must be
// registered.
func NewModelGateway(providers []Provider, fallback string, opts ...GatewayOption) (*ModelGateway, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("chatgate: at least one provider is required")
	}

	provMap := make(map[string]Provider, len(providers))
	for _, p := range providers {
		provMap[p.Name()] = p
	}
	if _, ok := provMap[fallback]; !ok {
		return nil, fmt.Errorf("chatgate: fallback provider %q is not registered", fallback)
	}

	g := &ModelGateway{
		providers: provMap,
		fallback:  fallback,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Has reports whether a provider id is registered.
func (g *ModelGateway) Has(name string) bool {
	_, ok := g.providers[name]
	return ok
}

// Names returns the registered provider ids, fallback first, the rest sorted.
func (g *ModelGateway) Names() []string {
	names := []string{g.fallback}
	for name := range g.providers {
		if name != g.fallback {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])
	return names
}

// Default returns the fallback provider id.
func (g *ModelGateway) Default() string { return g.fallback }

// Generate produces one complete reply using the named provider, falling back
// to the default provider on failure. An unknown or empty provider id selects
// the default directly. If the final fallback also fails, the error is
// returned wrapped in a GatewayError for the caller to map to a safe user
// message. Empty or whitespace-only output is substituted with a fixed text.
func (g *ModelGateway) Generate(ctx context.Context, messages []Message, providerID string) (string, error) {
	prov, ok := g.providers[providerID]
	if !ok {
		if providerID != "" {
			g.logger.Warn("unknown provider, using default", "provider", providerID, "default", g.fallback)
		}
		prov = g.providers[g.fallback]
	}

	attempts := 1
	text, err := g.generate(ctx, prov, messages)
	if err != nil && prov.Name() != g.fallback {
		g.logger.Warn("provider failed, falling back",
			"provider", prov.Name(),
			"fallback", g.fallback,
			"error", err,
		)
		prov = g.providers[g.fallback]
		attempts++
		text, err = g.generate(ctx, prov, messages)
	}
	if err != nil {
		return "", &GatewayError{
			Err:      fmt.Errorf("%w: %w", ErrAllProvidersFailed, err),
			Provider: prov.Name(),
			Attempts: attempts,
		}
	}

	if strings.TrimSpace(text) == "" {
		g.logger.Warn("empty reply from provider", "provider", prov.Name())
		return emptyReplyText, nil
	}
	return text, nil
}

func (g *ModelGateway) generate(ctx context.Context, prov Provider, messages []Message) (string, error) {
	req := GenerateRequest{Messages: messages}

	sp, ok := prov.(StreamingProvider)
	if !ok {
		return prov.Generate(ctx, req)
	}

	stream, err := sp.GenerateStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		fragment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}
