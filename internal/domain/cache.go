package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CachedPrice is the last observed price for a symbol. ObservedAt never moves
// backwards for a given symbol.
type CachedPrice struct {
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// Fresh reports whether the entry is still usable at now for the given TTL.
func (c CachedPrice) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.ObservedAt) < ttl
}

// PriceCache stores the latest price per symbol.
type PriceCache interface {
	// Get returns the cached entry and whether one exists. Expiry is the
	// caller's concern.
	Get(ctx context.Context, symbol string) (CachedPrice, bool, error)
	// Set overwrites the entry for p.Symbol unless the stored entry was
	// observed later than p.
	Set(ctx context.Context, p CachedPrice) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
}
