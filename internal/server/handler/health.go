package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// HealthChecker reports the reachability of the payment backend.
type HealthChecker interface {
	Health(ctx context.Context) domain.HealthStatus
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checker HealthChecker
	logger  *slog.Logger
}

func NewHealthHandler(checker HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, logger: logger}
}

// HealthCheck reports "ok" when the payment backend answers and "degraded"
// otherwise. The receiver itself is up in both cases, so the status code is
// always 200.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st := h.checker.Health(ctx)
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]bool{"paymentApi": st.Healthy},
	}
	if !st.Healthy {
		body["status"] = "degraded"
		body["reason"] = st.Reason
	}
	writeJSON(w, http.StatusOK, body)
}
