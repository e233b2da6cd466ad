// Package ollama provides a local inference adapter for an Ollama server.
package ollama

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

const defaultHost = "http://localhost:11434"

// Provider is the Ollama /api/chat adapter.
type Provider struct {
	host       string
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

// WithHost sets the Ollama server address (default http://localhost:11434).
func WithHost(host string) Option {
	return func(p *Provider) { p.host = strings.TrimRight(host, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithLogger sets the logger for stream decode diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates an Ollama provider running the given model (e.g. "llama2").
func New(model string, opts ...Option) *Provider {
	p := &Provider{
		host:       defaultHost,
		model:      model,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "ollama" }

type apiRequest struct {
	Model    string             `json:"model"`
	Messages []chatgate.Message `json:"messages"`
	Stream   bool               `json:"stream"`
}

type apiResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Generate performs a non-streaming chat call.
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
		return "", fmt.Errorf("chatgate: decode ollama response: %w", err)
	}
	return resp.Message.Content, nil
}

// GenerateStream performs a streaming chat call. Ollama streams one JSON
// object per line.
func (p *Provider) GenerateStream(ctx context.Context, req chatgate.GenerateRequest) (chatgate.Stream, error) {
	httpResp, err := p.doRequest(ctx, apiRequest{Model: p.model, Messages: req.Messages, Stream: true})
	if err != nil {
		return nil, err
	}

	if err := mapHTTPError(httpResp); err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	return &lineStream{
		reader: bufio.NewReader(httpResp.Body),
		body:   httpResp.Body,
		logger: p.logger,
	}, nil
}

func (p *Provider) doRequest(ctx context.Context, body apiRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("chatgate: marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("chatgate: create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return chatgate.ErrRateLimited
	case http.StatusBadRequest, http.StatusNotFound:
		return fmt.Errorf("%w: %s", chatgate.ErrInvalidRequest, string(body))
	default:
		return chatgate.ErrProviderUnavailable
	}
}

// lineStream parses newline-delimited JSON objects from the response body.
type lineStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
	logger *slog.Logger
}

func (s *lineStream) Next() (string, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			return "", io.EOF
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var chunk apiResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			s.logger.Debug("skipping malformed stream line", "provider", "ollama", "error", err)
			continue
		}

		if chunk.Message.Content == "" && chunk.Done {
			return "", io.EOF
		}
		return chunk.Message.Content, nil
	}
}

func (s *lineStream) Close() error {
	return s.body.Close()
}
