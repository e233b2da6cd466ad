package chatgate

import (
	"context"
	"fmt"
	"log/slog"
)

// PaymentProvider creates an opaque "pay here" reference for the fixed
// subscription charge: a client secret, a redirect URL, or an invoice URL
// depending on the provider.
type PaymentProvider interface {
	// Name returns the provider identifier (e.g. "stripe", "paypal").
	Name() string

	// CreateReference performs the provider-specific create-charge call and
	// extracts the single opaque reference string.
	CreateReference(ctx context.Context) (string, error)
}

// EntitlementGateway routes payment reference creation to a registry of
// payment providers.
type EntitlementGateway struct {
	providers map[string]PaymentProvider
	fallback  string
	logger    *slog.Logger
}

// EntitlementOption configures an EntitlementGateway.
type EntitlementOption func(*EntitlementGateway)

// WithEntitlementLogger sets the logger for provider failures.
func WithEntitlementLogger(l *slog.Logger) EntitlementOption {
	return func(g *EntitlementGateway) { g.logger = l }
}

// NewEntitlementGateway creates a gateway over the given payment providers.
// fallback names the provider used when no explicit choice is made.
func NewEntitlementGateway(providers []PaymentProvider, fallback string, opts ...EntitlementOption) (*EntitlementGateway, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("chatgate: at least one payment provider is required")
	}

	provMap := make(map[string]PaymentProvider, len(providers))
	for _, p := range providers {
		provMap[p.Name()] = p
	}
	if _, ok := provMap[fallback]; !ok {
		return nil, fmt.Errorf("chatgate: default payment provider %q is not registered", fallback)
	}

	g := &EntitlementGateway{
		providers: provMap,
		fallback:  fallback,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CreateReference obtains a payment reference from the named provider, or the
// default when providerID is empty or unknown. Any failure is logged and
// returned as ErrPaymentFailed; callers report "could not start payment" to
// the user and must not retry automatically.
func (g *EntitlementGateway) CreateReference(ctx context.Context, providerID string) (string, error) {
	prov, ok := g.providers[providerID]
	if !ok {
		prov = g.providers[g.fallback]
	}

	ref, err := prov.CreateReference(ctx)
	if err != nil {
		g.logger.Error("payment reference creation failed",
			"provider", prov.Name(),
			"error", err,
		)
		return "", fmt.Errorf("%w: %s", ErrPaymentFailed, prov.Name())
	}
	if ref == "" {
		g.logger.Error("payment provider returned an empty reference", "provider", prov.Name())
		return "", fmt.Errorf("%w: %s", ErrPaymentFailed, prov.Name())
	}
	return ref, nil
}
