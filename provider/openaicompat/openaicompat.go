// Package openaicompat provides an adapter for hosted OpenAI-compatible
// completion APIs (OpenAI, Mistral, Together, and others sharing the
// /chat/completions wire shape).
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ineyio/chatgate"
)

// Provider is a universal OpenAI-compatible API adapter.
type Provider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ chatgate.Provider          = (*Provider)(nil)
	_ chatgate.StreamingProvider = (*Provider)(nil)
)

// Option configures the provider.
type Option func(*Provider)

// WithName overrides the provider identifier (default "openai").
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithLogger sets the logger for stream decode diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates an OpenAI-compatible provider against the given base URL.
func New(baseURL, apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		name:       "openai",
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewOpenAI creates a provider for api.openai.com.
func NewOpenAI(apiKey, model string, opts ...Option) *Provider {
	return New("https://api.openai.com/v1", apiKey, model, opts...)
}

func (p *Provider) Name() string { return p.name }

// apiRequest is the chat completion request format.
type apiRequest struct {
	Model    string             `json:"model"`
	Messages []chatgate.Message `json:"messages"`
	Stream   bool               `json:"stream,omitempty"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// apiStreamChunk is a single SSE chunk.
type apiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate performs a synchronous chat completion.
func (p *Provider) Generate(ctx context.Context, req chatgate.GenerateRequest) (string, error) {
	httpResp, err := p.doRequest(ctx, apiRequest{Model: p.model, Messages: req.Messages})
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return "", err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("chatgate: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatgate: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream performs a streaming chat completion over SSE.
func (p *Provider) GenerateStream(ctx context.Context, req chatgate.GenerateRequest) (chatgate.Stream, error) {
	httpResp, err := p.doRequest(ctx, apiRequest{Model: p.model, Messages: req.Messages, Stream: true})
	if err != nil {
		return nil, err
	}

	if err := mapHTTPError(httpResp); err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	return &sseStream{
		reader: bufio.NewReader(httpResp.Body),
		body:   httpResp.Body,
		logger: p.logger,
	}, nil
}

func (p *Provider) doRequest(ctx context.Context, body apiRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("chatgate: marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("chatgate: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, chatgate.ErrProviderUnavailable
	}
	return resp, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read body for error context, but don't fail if we can't.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return chatgate.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return chatgate.ErrAuthFailed
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", chatgate.ErrInvalidRequest, string(body))
	default:
		return chatgate.ErrProviderUnavailable
	}
}

// sseStream parses Server-Sent Events from an HTTP response body.
type sseStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
	logger *slog.Logger
}

func (s *sseStream) Next() (string, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return "", io.EOF
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return "", io.EOF
		}

		var chunk apiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.logger.Debug("skipping malformed stream chunk", "provider", "openai", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
