package nowpayments_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/chatgate/payment/nowpayments"
)

func TestProvider_CreateReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/invoice", r.URL.Path)
		assert.Equal(t, "np-key", r.Header.Get("x-api-key"))

		var req struct {
			PriceAmount   float64 `json:"price_amount"`
			PriceCurrency string  `json:"price_currency"`
			OrderID       string  `json:"order_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 10.0, req.PriceAmount)
		assert.Equal(t, "usd", req.PriceCurrency)
		assert.Regexp(t, `^sub-[0-9a-f-]{36}$`, req.OrderID)

		io.WriteString(w, `{"invoice_url":"https://nowpayments.example/invoice/1"}`)
	}))
	defer srv.Close()

	p, err := nowpayments.New("np-key", 1000, "usd", nowpayments.WithBaseURL(srv.URL))
	require.NoError(t, err)

	ref, err := p.CreateReference(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://nowpayments.example/invoice/1", ref)
}

func TestProvider_MissingInvoiceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	p, err := nowpayments.New("np-key", 1000, "usd", nowpayments.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.CreateReference(context.Background())
	assert.ErrorContains(t, err, "no invoice url")
}

func TestProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p, err := nowpayments.New("np-key", 1000, "usd", nowpayments.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.CreateReference(context.Background())
	assert.ErrorContains(t, err, "status 403")
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := nowpayments.New("", 1000, "usd")
	assert.Error(t, err)
}
