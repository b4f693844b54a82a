package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// setIfNewerLua writes the price hash only when the stored timestamp is not
// newer than the incoming one. Returns 1 when written, 0 when skipped.
// Timestamps are non-negative decimal strings compared by length and then
// lexically; tonumber would round nanoseconds past 2^53.
const setIfNewerLua = `
local function newer(a, b)
    if #a ~= #b then
        return #a > #b
    end
    return a > b
end
local cur = redis.call('HGET', KEYS[1], 'ts')
if cur and newer(cur, ARGV[2]) then
    return 0
end
redis.call('HSET', KEYS[1], 'price', ARGV[1], 'ts', ARGV[2])
if tonumber(ARGV[3]) > 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`

// PriceCache implements domain.PriceCache using Redis hashes so several
// server processes can share fetched prices.
// Each symbol is stored as a hash at key "{prefix}price:{SYMBOL}" with fields
// "price" (decimal string) and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	c         *Client
	setScript *redis.Script
	retention time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. Keys expire
// after retention; freshness is still decided by the caller's TTL, so
// retention only bounds memory and should exceed that TTL.
func NewPriceCache(c *Client, retention time.Duration) *PriceCache {
	return &PriceCache{
		c:         c,
		setScript: redis.NewScript(setIfNewerLua),
		retention: retention,
	}
}

func (pc *PriceCache) priceKey(symbol string) string {
	return pc.c.key("price:", strings.ToUpper(symbol))
}

// Get retrieves the cached price for symbol. A missing key reports ok=false.
func (pc *PriceCache) Get(ctx context.Context, symbol string) (domain.CachedPrice, bool, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.priceKey(symbol)).Result()
	if err != nil {
		return domain.CachedPrice{}, false, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}

	priceStr, okPrice := vals["price"]
	tsStr, okTS := vals["ts"]
	if !okPrice || !okTS {
		return domain.CachedPrice{}, false, nil
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.CachedPrice{}, false, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.CachedPrice{}, false, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}

	return domain.CachedPrice{
		Symbol:     strings.ToUpper(symbol),
		Price:      price,
		ObservedAt: time.Unix(0, tsNano),
	}, true, nil
}

// Set stores the price unless a newer observation is already cached.
func (pc *PriceCache) Set(ctx context.Context, p domain.CachedPrice) error {
	err := pc.setScript.Run(ctx, pc.c.rdb,
		[]string{pc.priceKey(p.Symbol)},
		p.Price.String(),
		strconv.FormatInt(p.ObservedAt.UnixNano(), 10),
		pc.retention.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: set price %s: %w", p.Symbol, err)
	}
	return nil
}

// Clear deletes every cached price under this module's prefix.
func (pc *PriceCache) Clear(ctx context.Context) error {
	iter := pc.c.rdb.Scan(ctx, 0, pc.c.key("price:*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: scan prices: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := pc.c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: clear prices: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
