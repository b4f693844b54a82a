package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/metrics"
)

// WebhookVerifier checks a platform signature over a webhook body.
type WebhookVerifier interface {
	VerifyWebhook(signature string, body any) (bool, error)
}

// PaymentNotifier announces webhook outcomes.
type PaymentNotifier interface {
	NotifyPayment(ctx context.Context, evt domain.WebhookEvent) error
	NotifyRejected(ctx context.Context, remoteAddr, reason string) error
}

// WebhookDeps are the collaborators of a WebhookService. Only Verifier is
// required.
type WebhookDeps struct {
	Verifier WebhookVerifier
	Store    domain.WebhookStore
	Archive  domain.BlobWriter
	Dedup    domain.WebhookDeduper
	Notifier PaymentNotifier
	Metrics  metrics.Recorder
	// ArchivePrefix is the object key prefix for archived bodies.
	ArchivePrefix string
}

// WebhookResult describes how a delivery was handled.
type WebhookResult struct {
	Event     domain.WebhookEvent
	Duplicate bool
}

// WebhookService verifies, records and announces platform webhooks.
type WebhookService struct {
	deps   WebhookDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewWebhookService creates a WebhookService.
func NewWebhookService(deps WebhookDeps, logger *slog.Logger) *WebhookService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopRecorder{}
	}
	if deps.ArchivePrefix == "" {
		deps.ArchivePrefix = "webhooks"
	}
	return &WebhookService{
		deps:   deps,
		logger: logger.With(slog.String("component", "webhook_service")),
		now:    time.Now,
	}
}

// Handle processes one delivery. It returns domain.ErrConfigurationMissing
// when no public key is configured, domain.ErrVerificationFailed for a bad
// signature and domain.ErrInvalidArgument for a body that is not a JSON
// object. A delivery already seen is reported as Duplicate without being
// stored again.
func (s *WebhookService) Handle(ctx context.Context, signature string, body []byte, remoteAddr string) (WebhookResult, error) {
	// Malformed bodies cannot be canonicalised for verification, so they
	// are rejected as bad input rather than as bad signatures.
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		s.deps.Metrics.IncCounter(metrics.WebhookVerify, map[string]string{"outcome": "malformed"})
		return WebhookResult{}, fmt.Errorf("%w: webhook body must be a JSON object", domain.ErrInvalidArgument)
	}

	ok, err := s.deps.Verifier.VerifyWebhook(signature, body)
	if err != nil {
		s.deps.Metrics.IncCounter(metrics.WebhookVerify, map[string]string{"outcome": "unconfigured"})
		return WebhookResult{}, err
	}
	if !ok {
		s.deps.Metrics.IncCounter(metrics.WebhookVerify, map[string]string{"outcome": "rejected"})
		s.logger.WarnContext(ctx, "webhook signature rejected", slog.String("remote", remoteAddr))
		if s.deps.Notifier != nil {
			if nerr := s.deps.Notifier.NotifyRejected(ctx, remoteAddr, "invalid signature"); nerr != nil {
				s.logger.WarnContext(ctx, "notify rejected webhook failed", slog.String("error", nerr.Error()))
			}
		}
		return WebhookResult{}, domain.ErrVerificationFailed
	}
	s.deps.Metrics.IncCounter(metrics.WebhookVerify, map[string]string{"outcome": "ok"})

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	evt := domain.WebhookEvent{
		ID:         uuid.NewString(),
		PaymentID:  firstString(body, "paymentId", "data.paymentId", "payment_id"),
		Status:     strings.ToLower(firstString(body, "status", "data.status")),
		Signature:  signature,
		Payload:    json.RawMessage(compact.Bytes()),
		ReceivedAt: s.now().UTC(),
	}

	dedupKey := deliveryKey(signature, compact.Bytes())
	if s.deps.Dedup != nil {
		first, err := s.deps.Dedup.Claim(ctx, dedupKey)
		if err != nil {
			s.logger.WarnContext(ctx, "webhook dedup unavailable", slog.String("error", err.Error()))
		} else if !first {
			s.logger.InfoContext(ctx, "duplicate webhook ignored", slog.String("payment_id", evt.PaymentID))
			return WebhookResult{Event: evt, Duplicate: true}, nil
		}
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Insert(ctx, evt); err != nil {
			if s.deps.Dedup != nil {
				_ = s.deps.Dedup.Release(ctx, dedupKey)
			}
			return WebhookResult{}, fmt.Errorf("webhook_service: store event: %w", err)
		}
	}

	if s.deps.Archive != nil {
		key := archiveKey(s.deps.ArchivePrefix, evt)
		if err := s.deps.Archive.Put(ctx, key, bytes.NewReader(evt.Payload), "application/json"); err != nil {
			s.logger.WarnContext(ctx, "webhook archive failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyPayment(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "webhook notify failed", slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "webhook accepted",
		slog.String("event_id", evt.ID),
		slog.String("payment_id", evt.PaymentID),
		slog.String("status", evt.Status),
	)
	return WebhookResult{Event: evt}, nil
}

// archiveKey lays objects out as prefix/YYYY/MM/DD/<id>.json.
func archiveKey(prefix string, evt domain.WebhookEvent) string {
	return path.Join(prefix, evt.ReceivedAt.Format("2006/01/02"), evt.ID+".json")
}

// deliveryKey identifies a delivery by its signature and canonical body.
func deliveryKey(signature string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(signature))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
