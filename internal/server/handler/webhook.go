package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/server/middleware"
	"github.com/syamai/crypto-payment-mcp/internal/service"
)

// maxWebhookBody caps the accepted webhook body size.
const maxWebhookBody = 1 << 20

// WebhookProcessor handles one verified-or-rejected delivery.
type WebhookProcessor interface {
	Handle(ctx context.Context, signature string, body []byte, remoteAddr string) (service.WebhookResult, error)
}

// WebhookHandler receives platform webhooks and serves the stored events.
type WebhookHandler struct {
	processor       WebhookProcessor
	store           domain.WebhookStore
	signatureHeader string
	logger          *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. store may be nil, in which
// case the listing endpoint reports 503.
func NewWebhookHandler(processor WebhookProcessor, store domain.WebhookStore, signatureHeader string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor:       processor,
		store:           store,
		signatureHeader: signatureHeader,
		logger:          logger.With(slog.String("handler", "webhook")),
	}
}

// Receive verifies and records a platform webhook.
// POST /webhooks/platform
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	signature := r.Header.Get(h.signatureHeader)
	if signature == "" {
		writeError(w, http.StatusUnauthorized, "missing signature")
		return
	}

	res, err := h.processor.Handle(r.Context(), signature, body, middleware.ClientIP(r))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConfigurationMissing):
		writeError(w, http.StatusServiceUnavailable, "webhook verification is not configured")
		return
	case errors.Is(err, domain.ErrVerificationFailed):
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	default:
		h.logger.ErrorContext(r.Context(), "webhook processing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := map[string]any{"result": true}
	if res.Duplicate {
		resp["duplicate"] = true
	} else {
		resp["eventId"] = res.Event.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

type eventView struct {
	ID         string    `json:"id"`
	PaymentID  string    `json:"paymentId"`
	Status     string    `json:"status"`
	Payload    any       `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ListByPayment returns the stored events for one payment, newest first.
// GET /api/webhooks/{paymentId}
func (h *WebhookHandler) ListByPayment(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "event store is not configured")
		return
	}

	paymentID := r.PathValue("paymentId")
	events, err := h.store.ListByPayment(r.Context(), paymentID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list webhook events failed",
			slog.String("payment_id", paymentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]eventView, len(events))
	for i, e := range events {
		out[i] = eventView{
			ID:         e.ID,
			PaymentID:  e.PaymentID,
			Status:     e.Status,
			Payload:    e.Payload,
			ReceivedAt: e.ReceivedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out, "count": len(out)})
}
