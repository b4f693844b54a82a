package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

func TestFetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"64123.45000000"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	price, err := c.FetchPrice(context.Background(), "wbtc")
	require.NoError(t, err)
	assert.Equal(t, "64123.45", price.String())
}

func TestFetchPrice_Unsupported(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, nil)
	assert.False(t, c.Supports("SHIB"))
	assert.True(t, c.Supports("eth"))

	_, err := c.FetchPrice(context.Background(), "shib")
	require.ErrorIs(t, err, domain.ErrUnsupportedSymbol)
	assert.Contains(t, err.Error(), "SHIB")
}

func TestFetchPrice_UpstreamFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		},
		"no price": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT"}`))
		},
		"bad price": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"abc"}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).FetchPrice(context.Background(), "ETH")
			assert.ErrorIs(t, err, domain.ErrFetchFailed)
		})
	}
}

func TestFetchPrice_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 50*time.Millisecond, nil).FetchPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}
