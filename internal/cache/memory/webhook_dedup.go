package memory

import (
	"context"
	"sync"
	"time"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// sweepEvery bounds how often Claim scans for expired entries.
const sweepEvery = time.Minute

// WebhookDedup remembers claimed webhook deliveries for ttl within a single
// process. It is safe for concurrent use.
type WebhookDedup struct {
	mu        sync.Mutex
	seen      map[string]time.Time // key -> claim time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewWebhookDedup creates a WebhookDedup whose claims expire after ttl.
func NewWebhookDedup(ttl time.Duration) *WebhookDedup {
	return &WebhookDedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Claim returns true the first time key is seen within the TTL.
func (d *WebhookDedup) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastSweep) >= sweepEvery {
		d.sweep(now)
	}
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return false, nil
	}
	d.seen[key] = now
	return true, nil
}

// Release forgets key.
func (d *WebhookDedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}

// Len returns the number of remembered claims, expired or not.
func (d *WebhookDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *WebhookDedup) sweep(now time.Time) {
	for key, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, key)
		}
	}
	d.lastSweep = now
}

var _ domain.WebhookDeduper = (*WebhookDedup)(nil)
