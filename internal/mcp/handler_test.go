package mcp

import (
	"context"
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/platform/backend"
	"github.com/syamai/crypto-payment-mcp/internal/platform/operator"
	"github.com/syamai/crypto-payment-mcp/internal/service"
)

type fakePrices struct {
	prices map[string]string
}

func (f *fakePrices) Resolve(_ context.Context, symbol string) (domain.TokenPrice, error) {
	sym := strings.ToUpper(symbol)
	p, found := f.prices[sym]
	if !found {
		return domain.TokenPrice{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, sym)
	}
	if p == "timeout" {
		return domain.TokenPrice{}, fmt.Errorf("%w for %s: %w: dial tcp", domain.ErrFetchFailed, sym, domain.ErrTimeout)
	}
	return domain.NewTokenPrice(sym, decimal.RequireFromString(p), time.UnixMilli(1700000000000)), nil
}

func (f *fakePrices) ResolveMany(ctx context.Context, symbols []string) []domain.TokenPrice {
	out := make([]domain.TokenPrice, len(symbols))
	for i, s := range symbols {
		p, err := f.Resolve(ctx, s)
		if err != nil {
			p = domain.TokenPrice{Symbol: strings.ToUpper(s), Unresolved: true, Error: err.Error()}
		}
		out[i] = p
	}
	return out
}

func (f *fakePrices) TokenWithPrice(ctx context.Context, symbol string) (domain.TokenWithPrice, error) {
	info, found := domain.LookupToken(symbol)
	if !found {
		return domain.TokenWithPrice{}, domain.ErrNotFound
	}
	p, _ := f.Resolve(ctx, symbol)
	return domain.TokenWithPrice{Symbol: info.Symbol, Name: info.Name, Decimals: info.Decimals, Price: p.Price, PriceUSD: p.PriceUSD}, nil
}

func (f *fakePrices) ToUSD(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, err := f.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(p.PriceUSD), nil
}

func (f *fakePrices) FromUSD(ctx context.Context, symbol string, usd decimal.Decimal) (decimal.Decimal, error) {
	p, err := f.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if p.PriceUSD.IsZero() {
		return decimal.Zero, fmt.Errorf("%w (%s)", domain.ErrZeroPrice, p.Symbol)
	}
	return usd.Div(p.PriceUSD), nil
}

type fakePayments struct {
	platform  bool
	healthy   bool
	err       error
	lastToken string
	lastQuery domain.HistoryQuery
	lastBody  any
}

func (f *fakePayments) RequestPayment(_ context.Context, token string) (domain.PaymentRequest, error) {
	f.lastToken = token
	if f.err != nil {
		return domain.PaymentRequest{}, f.err
	}
	return domain.PaymentRequest{PaymentID: "pay-1", PaymentURL: "https://pay/1", Message: "created"}, nil
}

func (f *fakePayments) PaymentStatus(_ context.Context, _, id string) (domain.PaymentStatus, error) {
	return domain.PaymentStatus{PaymentID: id, Status: "pending"}, f.err
}

func (f *fakePayments) UserBalance(_ context.Context, _ string) (domain.UserBalance, error) {
	return domain.UserBalance{UserID: "u1", UserName: "alice", Balance: 42.5}, f.err
}

func (f *fakePayments) History(_ context.Context, _ string, q domain.HistoryQuery) (domain.PaymentHistory, error) {
	f.lastQuery = q
	return domain.PaymentHistory{Data: []domain.PaymentStatus{}, Page: q.Page, Limit: q.Limit}, f.err
}

func (f *fakePayments) Health(_ context.Context) domain.HealthStatus {
	if f.healthy {
		return domain.HealthStatus{Healthy: true}
	}
	return domain.HealthStatus{Reason: "connection refused"}
}

func (f *fakePayments) PlatformConfigured() bool { return f.platform }

func (f *fakePayments) PlatformRequestPayment(_ context.Context, _ string) (domain.PlatformPayment, error) {
	return domain.PlatformPayment{PaymentID: "p-9", PaymentURL: "https://d/?paymentId=p-9&id=op"}, nil
}

func (f *fakePayments) PlatformBalance(_ context.Context, _ string) (domain.PlatformBalance, error) {
	return domain.PlatformBalance{UserID: "u1", Balance: 5, Raw: map[string]any{"userId": "u1", "balance": 5.0, "currency": "USD"}}, nil
}

func (f *fakePayments) VerifyWebhook(_ string, body any) (bool, error) {
	f.lastBody = body
	return true, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(payments *fakePayments) *ToolHandler {
	prices := &fakePrices{prices: map[string]string{"USDT": "1", "BTC": "50000", "ETH": "2500", "ZERO": "0", "SLOW": "timeout"}}
	h := NewToolHandler(prices, payments, nil, testLogger())
	h.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return h
}

func call(t *testing.T, h *ToolHandler, name, args string) (Envelope, map[string]any) {
	t.Helper()
	env := h.Call(context.Background(), name, json.RawMessage(args))
	if !env.Success {
		return env, nil
	}
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var data map[string]any
	require.NoError(t, json.Unmarshal(raw, &data))
	return env, data
}

func TestToolHandler_RequiredArguments(t *testing.T) {
	h := newTestHandler(&fakePayments{})
	tests := []struct {
		tool, args, want string
	}{
		{ToolRequestPayment, `{}`, "authToken is required"},
		{ToolRequestPayment, `null`, "authToken is required"},
		{ToolGetPaymentStatus, `{"authToken":"t"}`, "paymentId is required"},
		{ToolListTokens, `{}`, "network is required"},
		{ToolGetTokenPrice, `{"symbol":""}`, "symbol is required"},
		{ToolGetMultiplePrices, `{"symbols":[]}`, "symbols array is required"},
		{ToolGetMultiplePrices, `{}`, "symbols array is required"},
		{ToolConvertAmount, `{"symbol":"BTC","direction":"toUsd"}`, "amount is required"},
		{ToolConvertAmount, `{"symbol":"BTC","amount":1,"direction":"sideways"}`, `direction must be "toUsd" or "fromUsd"`},
		{ToolValidateAddress, `{"address":"0x0"}`, "network is required"},
		{ToolVerifyWebhook, `{"signature":"s"}`, "payload is required"},
		{ToolGetPaymentHistory, `{"authToken":"t","page":"two"}`, "page must be a number"},
		{ToolListNetworks, `{"type":"both"}`, `type must be one of "all", "deposit", "withdraw"`},
	}
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.want, func(t *testing.T) {
			env, _ := call(t, h, tt.tool, tt.args)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.Error)
		})
	}
}

func TestToolHandler_UnknownTool(t *testing.T) {
	h := newTestHandler(&fakePayments{})
	env, _ := call(t, h, "crypto_nope", `{}`)
	assert.Equal(t, "Unknown tool: crypto_nope", env.Error)

	// Platform tools are unknown until the platform is configured.
	env, _ = call(t, h, ToolPlatformRequestPayment, `{"userToken":"u"}`)
	assert.Equal(t, "Unknown tool: "+ToolPlatformRequestPayment, env.Error)
}

func TestToolHandler_RequestPayment(t *testing.T) {
	payments := &fakePayments{}
	h := newTestHandler(payments)

	env, data := call(t, h, ToolRequestPayment, `{"authToken":"jwt-1"}`)
	require.True(t, env.Success)
	assert.Equal(t, "pay-1", data["paymentId"])
	assert.Equal(t, "https://pay/1", data["paymentUrl"])
	assert.Equal(t, "created", data["message"])
	assert.Equal(t, "jwt-1", payments.lastToken)
}

func TestToolHandler_UpstreamErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		msg    string
		want   string
	}{
		{"rejected", http.StatusBadRequest, "Payment not allowed", "API error: Payment not allowed"},
		{"unauthorized", http.StatusUnauthorized, "Invalid token", "Authentication failed: Invalid token"},
		{"forbidden", http.StatusForbidden, "Token revoked", "Authentication failed: Token revoked"},
		{"rate limited", http.StatusTooManyRequests, "slow down", "Too many requests to the payment API, try again later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("backend: get: %w", &domain.UpstreamError{StatusCode: tt.status, Message: tt.msg})
			h := newTestHandler(&fakePayments{err: err})

			env, _ := call(t, h, ToolRequestPayment, `{"authToken":"jwt"}`)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.Error)
		})
	}
}

// newBackendHandler wires a ToolHandler to a real backend client.
func newBackendHandler(baseURL string) *ToolHandler {
	payments := service.NewPaymentService(backend.NewClient(baseURL, 2*time.Second), nil, testLogger())
	return NewToolHandler(&fakePrices{}, payments, nil, testLogger())
}

func TestToolHandler_BackendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	h := newBackendHandler("http://" + addr)

	env, _ := call(t, h, ToolRequestPayment, `{"authToken":"t"}`)
	assert.False(t, env.Success)
	assert.Equal(t, "API error: connection failed", env.Error)
	assert.NotContains(t, env.Error, addr)
}

func TestToolHandler_BackendUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	h := newBackendHandler(srv.URL)

	env, _ := call(t, h, ToolGetUserBalance, `{"authToken":"t"}`)
	assert.False(t, env.Success)
	assert.Equal(t, "API error: invalid response", env.Error)
}

func TestToolHandler_UnexpectedErrorIsGeneric(t *testing.T) {
	h := newTestHandler(&fakePayments{err: fmt.Errorf("pq: password authentication failed for user admin")})

	env, _ := call(t, h, ToolGetPaymentStatus, `{"authToken":"jwt","paymentId":"p"}`)
	assert.Equal(t, "Unknown error occurred", env.Error)
}

func TestToolHandler_UserBalance(t *testing.T) {
	h := newTestHandler(&fakePayments{})
	env, data := call(t, h, ToolGetUserBalance, `{"authToken":"jwt"}`)
	require.True(t, env.Success)
	assert.Equal(t, 42.5, data["balanceUsd"])
	assert.Equal(t, "alice", data["userName"])
}

func TestToolHandler_History(t *testing.T) {
	payments := &fakePayments{}
	h := newTestHandler(payments)
	env, _ := call(t, h, ToolGetPaymentHistory, `{"authToken":"jwt","page":2,"limit":5,"status":"success"}`)
	require.True(t, env.Success)
	assert.Equal(t, domain.HistoryQuery{Page: 2, Limit: 5, Status: "success"}, payments.lastQuery)
}

func TestToolHandler_ListNetworks(t *testing.T) {
	h := newTestHandler(&fakePayments{})

	_, all := call(t, h, ToolListNetworks, `{}`)
	assert.EqualValues(t, len(domain.AllNetworks), all["count"])

	_, dep := call(t, h, ToolListNetworks, `{"type":"deposit"}`)
	assert.EqualValues(t, len(domain.DepositNetworks), dep["count"])
	first := dep["networks"].([]any)[0].(map[string]any)
	assert.Equal(t, true, first["canDeposit"])
	assert.NotEmpty(t, first["name"])
}

func TestToolHandler_ListTokensDeduplicates(t *testing.T) {
	h := newTestHandler(&fakePayments{})
	n := domain.NetworkBSCTestnet

	_, data := call(t, h, ToolListTokens, fmt.Sprintf(`{"network":%q}`, n))
	tokens := data["tokens"].([]any)
	seen := map[string]bool{}
	for _, tok := range tokens {
		sym := tok.(map[string]any)["symbol"].(string)
		assert.False(t, seen[sym], "duplicate %s", sym)
		seen[sym] = true
	}
	for _, s := range domain.DepositTokens(n) {
		assert.True(t, seen[s])
	}
	assert.EqualValues(t, len(tokens), data["count"])
}

func TestToolHandler_ListTokensUnknownNetwork(t *testing.T) {
	h := newTestHandler(&fakePayments{})
	env, data := call(t, h, ToolListTokens, `{"network":"dogechain"}`)
	require.True(t, env.Success)
	assert.EqualValues(t, 0, data["count"])
}

func TestToolHandler_TokenInfo(t *testing.T) {
	h := newTestHandler(&fakePayments{})

	env, _ := call(t, h, ToolGetTokenInfo, `{"symbol":"NOPE"}`)
	assert.Equal(t, "Token not found: NOPE", env.Error)

	env, data := call(t, h, ToolGetTokenInfo, `{"symbol":"btc"}`)
	require.True(t, env.Success)
	assert.Equal(t, "BTC", data["symbol"])
	assert.Equal(t, "50000", data["priceUsd"])
}

func TestToolHandler_Prices(t *testing.T) {
	h := newTestHandler(&fakePayments{})

	env, data := call(t, h, ToolGetTokenPrice, `{"symbol":"eth"}`)
	require.True(t, env.Success)
	assert.Equal(t, "2500", data["price"])

	env, _ = call(t, h, ToolGetTokenPrice, `{"symbol":"SLOW"}`)
	assert.Equal(t, "request timed out", env.Error)

	env, _ = call(t, h, ToolGetTokenPrice, `{"symbol":"DOGE"}`)
	assert.Equal(t, "price source not available for token: DOGE", env.Error)

	env, data = call(t, h, ToolGetMultiplePrices, `{"symbols":["BTC","DOGE","USDT"]}`)
	require.True(t, env.Success)
	prices := data["prices"].([]any)
	require.Len(t, prices, 3)
	assert.Equal(t, true, prices[1].(map[string]any)["unresolved"])
	assert.EqualValues(t, 3, data["count"])
	assert.EqualValues(t, h.now().UnixMilli(), data["timestamp"])
}

func TestToolHandler_ConvertAmount(t *testing.T) {
	h := newTestHandler(&fakePayments{})

	env, data := call(t, h, ToolConvertAmount, `{"symbol":"btc","amount":0.5,"direction":"toUsd"}`)
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"symbol": "btc", "amount": "0.5"}, data["from"])
	assert.Equal(t, map[string]any{"symbol": "USD", "amount": "25000"}, data["to"])

	env, data = call(t, h, ToolConvertAmount, `{"symbol":"eth","amount":5000,"direction":"fromUsd"}`)
	require.True(t, env.Success)
	assert.Equal(t, map[string]any{"symbol": "USD", "amount": "5000"}, data["from"])
	assert.Equal(t, map[string]any{"symbol": "ETH", "amount": "2"}, data["to"])

	env, _ = call(t, h, ToolConvertAmount, `{"symbol":"zero","amount":0,"direction":"fromUsd"}`)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, domain.ErrZeroPrice.Error())
}

func TestToolHandler_ValidateAddress(t *testing.T) {
	h := newTestHandler(&fakePayments{})

	_, data := call(t, h, ToolValidateAddress, `{"address":"0x52908400098527886E0F7030069857D2E4169EE7","network":"eth"}`)
	assert.Equal(t, true, data["valid"])

	_, data = call(t, h, ToolValidateAddress, `{"address":"abc","network":"dogechain"}`)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, "Unknown network: dogechain", data["reason"])
}

func TestToolHandler_HealthCheck(t *testing.T) {
	env, data := call(t, newTestHandler(&fakePayments{healthy: true}), ToolHealthCheck, ``)
	require.True(t, env.Success)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "2026-01-02T03:04:05.000Z", data["timestamp"])
	assert.Equal(t, map[string]any{"paymentApi": true}, data["services"])
	assert.NotContains(t, data, "error")

	env, data = call(t, newTestHandler(&fakePayments{}), ToolHealthCheck, `{}`)
	require.True(t, env.Success)
	assert.Equal(t, "unhealthy", data["status"])
	assert.Equal(t, "connection refused", data["error"])
}

func TestToolHandler_VerifyWebhook(t *testing.T) {
	payments := &fakePayments{}
	h := newTestHandler(payments)

	env, data := call(t, h, ToolVerifyWebhook, `{"signature":"c2ln","payload":{"b":1,"a":2}}`)
	require.True(t, env.Success)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, json.RawMessage(`{"b":1,"a":2}`), payments.lastBody)

	_, _ = call(t, h, ToolVerifyWebhook, `{"signature":"c2ln","payload":"{\"a\": 1}"}`)
	assert.Equal(t, `{"a": 1}`, payments.lastBody)

	payments.err = fmt.Errorf("platform: %w", domain.ErrConfigurationMissing)
	env, _ = call(t, h, ToolVerifyWebhook, `{"signature":"c2ln","payload":{}}`)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "configuration missing")
}

func TestToolHandler_PlatformTools(t *testing.T) {
	h := newTestHandler(&fakePayments{platform: true})
	assert.Len(t, h.Tools(), len(baseCatalog)+len(platformCatalog))

	env, data := call(t, h, ToolPlatformRequestPayment, `{"userToken":"u"}`)
	require.True(t, env.Success)
	assert.Equal(t, "p-9", data["paymentId"])

	env, data = call(t, h, ToolPlatformGetBalance, `{"userToken":"u"}`)
	require.True(t, env.Success)
	assert.Equal(t, "USD", data["currency"])

	env, _ = call(t, h, ToolPlatformGetBalance, `{}`)
	assert.Equal(t, "userToken is required", env.Error)
}

func TestToolHandler_VerifyWebhookPlainString(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	platform, err := operator.NewClient(operator.Config{
		PublicKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
	})
	require.NoError(t, err)
	payments := service.NewPaymentService(backend.NewClient("http://127.0.0.1:1", time.Second), platform, testLogger())
	h := NewToolHandler(&fakePrices{}, payments, nil, testLogger())

	digest := sha512.Sum512([]byte(`"payment settled"`))
	raw, err := rsa.SignPKCS1v15(rand.Reader, key, stdcrypto.SHA512, digest[:])
	require.NoError(t, err)
	sig := base64.StdEncoding.EncodeToString(raw)

	_, data := call(t, h, ToolVerifyWebhook, fmt.Sprintf(`{"signature":%q,"payload":"payment settled"}`, sig))
	assert.Equal(t, true, data["valid"])

	_, data = call(t, h, ToolVerifyWebhook, fmt.Sprintf(`{"signature":%q,"payload":"payment refunded"}`, sig))
	assert.Equal(t, false, data["valid"])
}
