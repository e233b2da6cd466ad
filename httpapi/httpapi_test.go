package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/chatgate"
	"github.com/ineyio/chatgate/httpapi"
	"github.com/ineyio/chatgate/provider/mock"
	"github.com/ineyio/chatgate/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newAPI(t *testing.T, confirmSecret string) (http.Handler, *store.Memory) {
	t.Helper()

	st := store.NewMemory()
	models, err := chatgate.NewModelGateway(
		[]chatgate.Provider{mock.New(mock.WithReply("mock says hi"))}, "mock",
		chatgate.WithGatewayLogger(discard))
	require.NoError(t, err)

	controller, err := chatgate.NewController(st, models, nil, chatgate.WithLogger(discard))
	require.NoError(t, err)

	return httpapi.New(controller, confirmSecret, discard).Router(), st
}

func postJSON(t *testing.T, h http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newAPI(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "ok", string(body))
}

func TestChat(t *testing.T) {
	h, _ := newAPI(t, "")

	rec := postJSON(t, h, "/chat", `{"user_id":"u1","text":"hello"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Reply string `json:"reply"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "mock says hi", resp.Reply)
}

func TestChat_BadRequests(t *testing.T) {
	h, _ := newAPI(t, "")

	rec := postJSON(t, h, "/chat", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/chat", `{"text":"no user"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirm(t *testing.T) {
	h, st := newAPI(t, "s3cret")

	header := http.Header{"X-Confirm-Secret": {"s3cret"}}
	rec := postJSON(t, h, "/payments/confirm", `{"user_id":"u1"}`, header)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	saved, err := st.GetOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, saved.Paid)
}

func TestConfirm_WrongSecret(t *testing.T) {
	h, st := newAPI(t, "s3cret")

	header := http.Header{"X-Confirm-Secret": {"wrong"}}
	rec := postJSON(t, h, "/payments/confirm", `{"user_id":"u1"}`, header)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	saved, err := st.GetOrCreate(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, saved.Paid)
}

func TestConfirm_Disabled(t *testing.T) {
	h, _ := newAPI(t, "")

	rec := postJSON(t, h, "/payments/confirm", `{"user_id":"u1"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirm_MissingUser(t *testing.T) {
	h, _ := newAPI(t, "s3cret")

	header := http.Header{"X-Confirm-Secret": {"s3cret"}}
	rec := postJSON(t, h, "/payments/confirm", `{}`, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
