// Package gemini provides an adapter for the Google Gemini API.
package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider is the Gemini API adapter.
type Provider struct {
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

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithLogger sets the logger for stream decode diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a Gemini provider for the given model (e.g. "gemini-2.0-flash").
func New(apiKey, model string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
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

func (p *Provider) Name() string { return "gemini" }

// Gemini API types.
type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate performs a synchronous generateContent call.
func (p *Provider) Generate(ctx context.Context, req chatgate.GenerateRequest) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)

	httpResp, err := p.doRequest(ctx, url, buildRequest(req.Messages))
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("chatgate: decode gemini response: %w", err)
	}
	return extractText(resp)
}

// GenerateStream performs a streaming call over SSE.
func (p *Provider) GenerateStream(ctx context.Context, req chatgate.GenerateRequest) (chatgate.Stream, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, p.model, p.apiKey)

	httpResp, err := p.doRequest(ctx, url, buildRequest(req.Messages))
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

// buildRequest maps role-tagged messages onto the Gemini wire shape: the
// system preamble becomes systemInstruction, assistant turns get role "model".
func buildRequest(messages []chatgate.Message) geminiRequest {
	var req geminiRequest
	for _, m := range messages {
		switch m.Role {
		case chatgate.RoleSystem:
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case chatgate.RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	return req
}

func extractText(resp geminiResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("chatgate: empty candidates in gemini response")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (p *Provider) doRequest(ctx context.Context, url string, body geminiRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("chatgate: marshal gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("chatgate: create gemini request: %w", err)
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
	case http.StatusUnauthorized, http.StatusForbidden:
		return chatgate.ErrAuthFailed
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", chatgate.ErrInvalidRequest, string(body))
	default:
		return chatgate.ErrProviderUnavailable
	}
}

// sseStream parses Server-Sent Events carrying Gemini response fragments.
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

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			s.logger.Debug("skipping malformed stream chunk", "provider", "gemini", "error", err)
			continue
		}
		if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
			continue
		}
		return chunk.Candidates[0].Content.Parts[0].Text, nil
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
