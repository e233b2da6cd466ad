package gemini_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/chatgate"
	"github.com/ineyio/chatgate/provider/gemini"
)

func TestProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))

		var req struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			SystemInstruction *struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"systemInstruction"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "be brief", req.SystemInstruction.Parts[0].Text)
		require.Len(t, req.Contents, 2)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "model", req.Contents[1].Role)

		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"a reply"}]}}]}`)
	}))
	defer srv.Close()

	p := gemini.New("g-key", "gemini-2.0-flash", gemini.WithBaseURL(srv.URL))
	out, err := p.Generate(context.Background(), chatgate.GenerateRequest{
		Messages: []chatgate.Message{
			{Role: chatgate.RoleSystem, Content: "be brief"},
			{Role: chatgate.RoleUser, Content: "hi"},
			{Role: chatgate.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "a reply", out)
}

func TestProvider_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))

		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n")
		io.WriteString(w, "data: {broken json\n\n")
		io.WriteString(w, "data: {\"candidates\":[]}\n\n")
		io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"lo\"}]}}]}\n\n")
	}))
	defer srv.Close()

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := gemini.New("g-key", "gemini-2.0-flash", gemini.WithBaseURL(srv.URL), gemini.WithLogger(logger))
	stream, err := p.GenerateStream(context.Background(), chatgate.GenerateRequest{
		Messages: []chatgate.Message{{Role: chatgate.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer stream.Close()

	var got string
	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got += fragment
	}
	assert.Equal(t, "Hello", got)
	assert.Contains(t, logBuf.String(), "skipping malformed stream chunk")
}

func TestProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, chatgate.ErrRateLimited},
		{http.StatusForbidden, chatgate.ErrAuthFailed},
		{http.StatusBadRequest, chatgate.ErrInvalidRequest},
		{http.StatusInternalServerError, chatgate.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		p := gemini.New("g-key", "gemini-2.0-flash", gemini.WithBaseURL(srv.URL))
		_, err := p.Generate(context.Background(), chatgate.GenerateRequest{})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		srv.Close()
	}
}

func TestProvider_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	p := gemini.New("g-key", "gemini-2.0-flash", gemini.WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), chatgate.GenerateRequest{})
	assert.ErrorContains(t, err, "empty candidates")
}
