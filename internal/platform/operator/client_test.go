package operator

import (
	"context"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syamai/crypto-payment-mcp/internal/crypto"
	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

func newClient(t *testing.T, h http.HandlerFunc, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := Config{
		OperatorID:     "op-123",
		OperatorSecret: "s3cret",
		APIURL:         srv.URL,
		DomainURL:      "https://pay.example.com/",
		Timeout:        2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestRequestPayment_HeadersAndLocalURL(t *testing.T) {
	wantAuth, err := crypto.BuildAuthorizationHeader("op-123", "s3cret")
	require.NoError(t, err)

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/operator/request-payment", r.URL.Path)
		assert.Equal(t, wantAuth, r.Header.Get("X-Operator-Authorization"))
		assert.Equal(t, "op-123", r.Header.Get("X-Operator-Id"))
		assert.Equal(t, "user-tok", r.Header.Get("X-User-Authorization"))
		_, _ = w.Write([]byte(`{"result":true,"data":{"paymentId":"abc","paymentUrl":"https://upstream.example/ignored"}}`))
	}, nil)

	got, err := c.RequestPayment(context.Background(), "user-tok")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.PaymentID)
	assert.Equal(t, "https://pay.example.com/?paymentId=abc&id=op-123", got.PaymentURL)
}

func TestRequestPayment_Rejected(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":false,"message":"user blocked"}`))
	}, nil)

	_, err := c.RequestPayment(context.Background(), "user-tok")
	require.ErrorIs(t, err, domain.ErrUpstreamRejected)
	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "user blocked", ue.Error())

	c = newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, nil)
	_, err = c.RequestPayment(context.Background(), "user-tok")
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "failed to request payment", ue.Error())
}

func TestGetUserBalance_Verbatim(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"userId":"u-9","balance":42.5,"currency":"USD"}`))
	}, nil)

	bal, err := c.GetUserBalance(context.Background(), "user-tok")
	require.NoError(t, err)
	assert.Equal(t, "u-9", bal.UserID)
	assert.Equal(t, 42.5, bal.Balance)
	assert.Equal(t, "USD", bal.Raw["currency"])
}

func TestUnconfiguredAndMissingToken(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, func(cfg *Config) { cfg.OperatorSecret = "" })

	assert.False(t, c.IsConfigured())
	_, err := c.RequestPayment(context.Background(), "user-tok")
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)

	c = newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)
	assert.True(t, c.IsConfigured())
	_, err = c.GetUserBalance(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
}

func TestUpstreamStatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid operator signature"}`))
	}, nil)

	_, err := c.GetUserBalance(context.Background(), "user-tok")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "API error: invalid operator signature")
}

func TestPaymentURLKeyOrder(t *testing.T) {
	c, err := NewClient(Config{OperatorID: "z-op", DomainURL: "https://pay.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/?paymentId=a1&id=z-op", c.PaymentURL("a1"))
}

func TestVerifyWebhook(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	body := []byte(`{"paymentId":"abc","status":"success"}`)
	digest := sha512.Sum512(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, stdcrypto.SHA512, digest[:])
	require.NoError(t, err)
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	noKey, err := NewClient(Config{})
	require.NoError(t, err)
	_, err = noKey.VerifyWebhook(sigB64, body)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	assert.False(t, noKey.CanVerifyWebhooks())

	c, err := NewClient(Config{PublicKeyPEM: pub})
	require.NoError(t, err)
	ok, err := c.VerifyWebhook(sigB64, body)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.VerifyWebhook(sigB64, []byte(`{"paymentId":"abc","status":"failed"}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewClient(Config{PublicKeyPEM: "garbage"})
	assert.Error(t, err)
}

func TestClientString_RedactsSecret(t *testing.T) {
	c := newClient(t, func(http.ResponseWriter, *http.Request) {}, func(cfg *Config) {
		cfg.OperatorSecret = "very-long-operator-secret"
	})
	assert.True(t, c.IsConfigured())

	s := c.String()
	assert.Contains(t, s, "op-123")
	assert.NotContains(t, s, "very-long-operator-secret")

	partial, err := NewClient(Config{OperatorID: "op-123", APIURL: "https://api.example.com"})
	require.NoError(t, err)
	assert.False(t, partial.IsConfigured())
	assert.Contains(t, partial.String(), "auth=none")
}
