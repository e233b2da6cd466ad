// Package huggingface provides an adapter for the Hugging Face hosted
// inference endpoints. The role-tagged conversation is flattened into a
// single prompt because the endpoint has no chat wire shape.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ineyio/chatgate"
)

const defaultBaseURL = "https://api-inference.huggingface.co/models"

// Provider is the Hugging Face inference adapter.
type Provider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ chatgate.Provider = (*Provider)(nil)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Hugging Face provider for the given model
// (e.g. "mistralai/Mistral-7B-Instruct-v0.2").
func New(apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "huggingface" }

type apiRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters apiParameters `json:"parameters"`
}

type apiParameters struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

type apiResponse []struct {
	GeneratedText string `json:"generated_text"`
}

// Generate flattens the messages into a prompt and extracts the assistant
// tail from the generated text.
func (p *Provider) Generate(ctx context.Context, req chatgate.GenerateRequest) (string, error) {
	prompt := flatten(req.Messages)

	jsonBody, err := json.Marshal(apiRequest{
		Inputs:     prompt,
		Parameters: apiParameters{MaxNewTokens: 500},
	})
	if err != nil {
		return "", fmt.Errorf("chatgate: marshal huggingface request: %w", err)
	}

	url := p.baseURL + "/" + p.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("chatgate: create huggingface request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", chatgate.ErrProviderUnavailable
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return "", err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("chatgate: decode huggingface response: %w", err)
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("chatgate: empty huggingface response")
	}

	// The endpoint echoes the prompt; keep only the last assistant turn.
	text := resp[0].GeneratedText
	if i := strings.LastIndex(text, "Assistant: "); i >= 0 {
		text = text[i+len("Assistant: "):]
	}
	return text, nil
}

func flatten(messages []chatgate.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case chatgate.RoleSystem:
			fmt.Fprintf(&b, "System: %s\n", m.Content)
		case chatgate.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
		default:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		}
	}
	b.WriteString("Assistant: ")
	return b.String()
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return chatgate.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return chatgate.ErrAuthFailed
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", chatgate.ErrInvalidRequest, string(body))
	default:
		return chatgate.ErrProviderUnavailable
	}
}
