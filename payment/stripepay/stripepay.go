// Package stripepay provides a card-based payment provider backed by Stripe
// PaymentIntents. The reference it produces is the intent's client secret.
package stripepay

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"github.com/ineyio/chatgate"
)

// Provider creates Stripe PaymentIntents for the fixed subscription charge.
type Provider struct {
	client      *client.API
	amountCents int64
	currency    string
}

var _ chatgate.PaymentProvider = (*Provider)(nil)

// New creates a Stripe payment provider.
func New(apiKey string, amountCents int64, currency string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chatgate/stripepay: api key is required")
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("chatgate/stripepay: amount must be positive")
	}

	api := &client.API{}
	api.Init(apiKey, nil)

	return &Provider{
		client:      api,
		amountCents: amountCents,
		currency:    currency,
	}, nil
}

func (p *Provider) Name() string { return "stripe" }

// CreateReference creates a PaymentIntent and returns its client secret.
func (p *Provider) CreateReference(ctx context.Context) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(p.amountCents),
		Currency: stripe.String(p.currency),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}

	intent, err := p.client.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("chatgate/stripepay: create payment intent: %w", err)
	}
	return intent.ClientSecret, nil
}
