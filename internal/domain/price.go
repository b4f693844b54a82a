package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TokenPrice is a point-in-time snapshot returned to callers. It is detached
// from the cache and may go stale.
type TokenPrice struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
	Timestamp int64           `json:"timestamp"`

	// Unresolved marks a batch placeholder whose lookup failed. Its prices
	// are zero and Error holds the reason.
	Unresolved bool   `json:"unresolved,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewTokenPrice builds a resolved snapshot with PriceUSD equal to Price.
func NewTokenPrice(symbol string, price decimal.Decimal, at time.Time) TokenPrice {
	return TokenPrice{
		Symbol:    symbol,
		Price:     price,
		PriceUSD:  price,
		Timestamp: at.UnixMilli(),
	}
}

// PriceSource fetches a live USD price for a symbol.
type PriceSource interface {
	// FetchPrice returns ErrUnsupportedSymbol when the symbol has no source
	// mapping.
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Supports(symbol string) bool
}

// TokenWithPrice combines token metadata with its current price.
type TokenWithPrice struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Decimals int             `json:"decimals"`
	Price    decimal.Decimal `json:"price"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
	Icon     string          `json:"icon"`
}
