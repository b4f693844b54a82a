package domain

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// WebhookEvent is a verified inbound notification from the operator platform.
type WebhookEvent struct {
	ID         string
	PaymentID  string
	Status     string
	Signature  string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// WebhookStore persists verified webhook events.
type WebhookStore interface {
	Insert(ctx context.Context, evt WebhookEvent) error
	ListByPayment(ctx context.Context, paymentID string, opts ListOpts) ([]WebhookEvent, error)
}

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// WebhookDeduper records which deliveries have been processed.
type WebhookDeduper interface {
	// Claim returns true if key has not been claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets a claim so a failed delivery can be retried.
	Release(ctx context.Context, key string) error
}
