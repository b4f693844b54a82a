// Package memory provides an in-process implementation of domain.PriceCache.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// PriceCache is a mutex-guarded map keyed by uppercase symbol.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]domain.CachedPrice
}

// NewPriceCache returns an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]domain.CachedPrice)}
}

func (c *PriceCache) Get(_ context.Context, symbol string) (domain.CachedPrice, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[strings.ToUpper(symbol)]
	return p, ok, nil
}

// Set stores p unless the current entry was observed later.
func (c *PriceCache) Set(_ context.Context, p domain.CachedPrice) error {
	p.Symbol = strings.ToUpper(p.Symbol)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[p.Symbol]; ok && cur.ObservedAt.After(p.ObservedAt) {
		return nil
	}
	c.entries[p.Symbol] = p
	return nil
}

func (c *PriceCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]domain.CachedPrice)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached symbols.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ domain.PriceCache = (*PriceCache)(nil)
