package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// WebhookDedup claims webhook deliveries with SETNX so a retried delivery of
// the same event is acknowledged without being processed twice, even when
// several receivers share one Redis.
type WebhookDedup struct {
	c   *Client
	ttl time.Duration
}

// NewWebhookDedup creates a WebhookDedup whose claims expire after ttl.
func NewWebhookDedup(c *Client, ttl time.Duration) *WebhookDedup {
	return &WebhookDedup{c: c, ttl: ttl}
}

// Claim returns true the first time key is seen within the TTL.
func (d *WebhookDedup) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.c.rdb.SetNX(ctx, d.c.key("webhook:", key), time.Now().UnixMilli(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim webhook %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes the claim for key.
func (d *WebhookDedup) Release(ctx context.Context, key string) error {
	if err := d.c.rdb.Del(ctx, d.c.key("webhook:", key)).Err(); err != nil {
		return fmt.Errorf("redis: release webhook %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.WebhookDeduper = (*WebhookDedup)(nil)
