// Package nowpayments provides an invoice-based cryptocurrency payment
// provider backed by the NOWPayments API. The reference it produces is the
// hosted invoice URL.
package nowpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ineyio/chatgate"
)

const defaultBaseURL = "https://api.nowpayments.io"

// Provider creates NOWPayments invoices for the fixed subscription charge.
type Provider struct {
	baseURL     string
	apiKey      string
	amountCents int64
	currency    string
	httpClient  *http.Client
}

var _ chatgate.PaymentProvider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a NOWPayments provider.
func New(apiKey string, amountCents int64, currency string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chatgate/nowpayments: api key is required")
	}

	p := &Provider{
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		amountCents: amountCents,
		currency:    currency,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string { return "nowpayments" }

type invoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description"`
}

type invoiceResponse struct {
	InvoiceURL string `json:"invoice_url"`
}

// CreateReference creates an invoice and returns its hosted URL. Each call
// carries a fresh order id.
func (p *Provider) CreateReference(ctx context.Context) (string, error) {
	jsonBody, err := json.Marshal(invoiceRequest{
		PriceAmount:      float64(p.amountCents) / 100,
		PriceCurrency:    p.currency,
		OrderID:          "sub-" + uuid.New().String(),
		OrderDescription: "Chat subscription",
	})
	if err != nil {
		return "", fmt.Errorf("chatgate/nowpayments: marshal invoice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/invoice", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("chatgate/nowpayments: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatgate/nowpayments: create invoice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chatgate/nowpayments: create invoice: status %d", resp.StatusCode)
	}

	var invoice invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return "", fmt.Errorf("chatgate/nowpayments: decode invoice: %w", err)
	}
	if invoice.InvoiceURL == "" {
		return "", fmt.Errorf("chatgate/nowpayments: no invoice url in response")
	}
	return invoice.InvoiceURL, nil
}
