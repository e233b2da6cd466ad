// Package paypal provides a redirect-based payment provider backed by the
// PayPal payments API. The reference it produces is the approval URL the user
// is sent to.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ineyio/chatgate"
)

const defaultBaseURL = "https://api.paypal.com"

// Provider creates PayPal payments for the fixed subscription charge.
type Provider struct {
	baseURL     string
	clientID    string
	secret      string
	amountCents int64
	currency    string
	httpClient  *http.Client
}

var _ chatgate.PaymentProvider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom API base URL (e.g. the sandbox host).
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a PayPal payment provider.
func New(clientID, secret string, amountCents int64, currency string, opts ...Option) (*Provider, error) {
	if clientID == "" || secret == "" {
		return nil, fmt.Errorf("chatgate/paypal: client id and secret are required")
	}

	p := &Provider{
		baseURL:     defaultBaseURL,
		clientID:    clientID,
		secret:      secret,
		amountCents: amountCents,
		currency:    currency,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Name() string { return "paypal" }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type paymentResponse struct {
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateReference obtains an access token, creates a payment, and extracts
// the approval URL from the response links.
func (p *Provider) CreateReference(ctx context.Context) (string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}

	amount := fmt.Sprintf("%d.%02d", p.amountCents/100, p.amountCents%100)
	body := map[string]any{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"transactions": []map[string]any{{
			"amount": map[string]string{
				"total":    amount,
				"currency": strings.ToUpper(p.currency),
			},
			"description": "Chat subscription",
		}},
		"redirect_urls": map[string]string{
			"return_url": "https://example.com/success",
			"cancel_url": "https://example.com/cancel",
		},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("chatgate/paypal: marshal payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payments/payment", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("chatgate/paypal: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatgate/paypal: create payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chatgate/paypal: create payment: status %d", resp.StatusCode)
	}

	var payment paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return "", fmt.Errorf("chatgate/paypal: decode payment: %w", err)
	}

	for _, link := range payment.Links {
		if link.Rel == "approval_url" {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("chatgate/paypal: no approval url in response")
}

func (p *Provider) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("chatgate/paypal: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.clientID, p.secret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chatgate/paypal: fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chatgate/paypal: fetch token: status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("chatgate/paypal: decode token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("chatgate/paypal: empty access token")
	}
	return token.AccessToken, nil
}
