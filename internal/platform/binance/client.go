// Package binance fetches spot USD prices from the Binance public ticker API.
package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/platform"
)

// Client implements domain.PriceSource against /api/v3/ticker/price.
type Client struct {
	baseURL    string
	pairs      map[string]string
	httpClient *http.Client
}

// NewClient creates a price source. pairs maps uppercase symbols to trading
// pairs; nil uses domain.PricePairs.
func NewClient(baseURL string, timeout time.Duration, pairs map[string]string) *Client {
	if pairs == nil {
		pairs = domain.PricePairs
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		pairs:   pairs,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Supports reports whether symbol has a trading pair.
func (c *Client) Supports(symbol string) bool {
	_, ok := c.pairs[strings.ToUpper(symbol)]
	return ok
}

// Symbols returns every symbol with a trading pair.
func (c *Client) Symbols() []string {
	out := make([]string, 0, len(c.pairs))
	for s := range c.pairs {
		out = append(out, s)
	}
	return out
}

// FetchPrice returns the last traded USDT price for symbol.
func (c *Client) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := strings.ToUpper(symbol)
	pair, ok := c.pairs[sym]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, sym)
	}

	endpoint := c.baseURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w for %s: %v", domain.ErrFetchFailed, sym, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fetchError(sym, platform.TransportError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fetchError(sym, platform.TransportError(err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "msg").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return decimal.Zero, fmt.Errorf("%w for %s: HTTP %d: %s", domain.ErrFetchFailed, sym, resp.StatusCode, msg)
	}

	raw := gjson.GetBytes(body, "price")
	if !raw.Exists() {
		return decimal.Zero, fmt.Errorf("%w for %s: response has no price", domain.ErrFetchFailed, sym)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w for %s: parse price %q: %v", domain.ErrFetchFailed, sym, raw.String(), err)
	}
	return price, nil
}

// fetchError keeps ErrTimeout matchable while still reporting a fetch
// failure.
func fetchError(sym string, err error) error {
	return fmt.Errorf("%w for %s: %w", domain.ErrFetchFailed, sym, err)
}

var _ domain.PriceSource = (*Client)(nil)
