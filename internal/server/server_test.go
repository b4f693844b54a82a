package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/server/handler"
	"github.com/syamai/crypto-payment-mcp/internal/service"
)

type stubProcessor struct {
	err       error
	duplicate bool
	gotSig    string
	gotBody   string
}

func (s *stubProcessor) Handle(_ context.Context, sig string, body []byte, _ string) (service.WebhookResult, error) {
	s.gotSig, s.gotBody = sig, string(body)
	if s.err != nil {
		return service.WebhookResult{}, s.err
	}
	return service.WebhookResult{Event: domain.WebhookEvent{ID: "evt-1"}, Duplicate: s.duplicate}, nil
}

type stubStore struct {
	events []domain.WebhookEvent
	opts   domain.ListOpts
}

func (s *stubStore) Insert(_ context.Context, evt domain.WebhookEvent) error {
	s.events = append(s.events, evt)
	return nil
}

func (s *stubStore) ListByPayment(_ context.Context, id string, opts domain.ListOpts) ([]domain.WebhookEvent, error) {
	s.opts = opts
	var out []domain.WebhookEvent
	for _, e := range s.events {
		if e.PaymentID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubHealth struct{ healthy bool }

func (s stubHealth) Health(context.Context) domain.HealthStatus {
	if s.healthy {
		return domain.HealthStatus{Healthy: true}
	}
	return domain.HealthStatus{Reason: "timeout"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(proc *stubProcessor, store domain.WebhookStore, cfg Config) http.Handler {
	logger := testLogger()
	srv := NewServer(cfg, Handlers{
		Health:  handler.NewHealthHandler(stubHealth{healthy: true}, logger),
		Webhook: handler.NewWebhookHandler(proc, store, "X-Signature", logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "# metrics") }),
	}, logger)
	return srv.Handler()
}

func postWebhook(h http.Handler, sig, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/platform", strings.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Signature", sig)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookReceive(t *testing.T) {
	tests := []struct {
		name     string
		sig      string
		err      error
		wantCode int
	}{
		{"accepted", "sig", nil, http.StatusOK},
		{"missing signature", "", nil, http.StatusUnauthorized},
		{"not configured", "sig", fmt.Errorf("platform: %w", domain.ErrConfigurationMissing), http.StatusServiceUnavailable},
		{"bad signature", "sig", domain.ErrVerificationFailed, http.StatusUnauthorized},
		{"bad body", "sig", fmt.Errorf("%w: not an object", domain.ErrInvalidArgument), http.StatusBadRequest},
		{"store down", "sig", fmt.Errorf("webhook_service: store event: boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{err: tt.err}
			rec := postWebhook(newTestServer(proc, nil, Config{}), tt.sig, `{"paymentId":"p"}`)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestWebhookReceive_Body(t *testing.T) {
	proc := &stubProcessor{}
	rec := postWebhook(newTestServer(proc, nil, Config{}), "c2ln", `{"paymentId":"p"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":true,"eventId":"evt-1"}`, rec.Body.String())
	assert.Equal(t, "c2ln", proc.gotSig)
	assert.Equal(t, `{"paymentId":"p"}`, proc.gotBody)

	proc.duplicate = true
	rec = postWebhook(newTestServer(proc, nil, Config{}), "c2ln", `{"paymentId":"p"}`)
	assert.JSONEq(t, `{"result":true,"duplicate":true}`, rec.Body.String())
}

func TestWebhookReceive_TooLarge(t *testing.T) {
	big := `{"x":"` + strings.Repeat("a", 2<<20) + `"}`
	rec := postWebhook(newTestServer(&stubProcessor{}, nil, Config{}), "sig", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestListByPayment(t *testing.T) {
	store := &stubStore{events: []domain.WebhookEvent{
		{ID: "e1", PaymentID: "p-1", Status: "success", Payload: json.RawMessage(`{"a":1}`), ReceivedAt: time.Unix(0, 0).UTC()},
		{ID: "e2", PaymentID: "p-2"},
	}}
	h := newTestServer(&stubProcessor{}, store, Config{APIKey: "k"})

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/p-1?limit=5", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []map[string]any `json:"events"`
		Count  int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, map[string]any{"a": 1.0}, body.Events[0]["payload"])
	assert.Equal(t, domain.ListOpts{Limit: 5}, store.opts)
}

func TestListByPayment_NoStore(t *testing.T) {
	h := newTestServer(&stubProcessor{}, nil, Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/webhooks/p-1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(&stubProcessor{}, nil, Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/platform", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitApplied(t *testing.T) {
	h := newTestServer(&stubProcessor{}, nil, Config{RateLimitRPS: 1, RateLimitBurst: 2})

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}
