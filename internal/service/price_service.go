package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/metrics"
)

// DefaultPriceTTL is how long a fetched price is served from cache.
const DefaultPriceTTL = 60 * time.Second

// PriceServiceConfig tunes caching and batch fan-out.
type PriceServiceConfig struct {
	TTL         time.Duration
	Concurrency int
	// Symbols is the universe used by ResolveAll. Empty means every key of
	// domain.PricePairs.
	Symbols []string
}

// PriceService resolves USD prices through a TTL cache in front of a live
// price source. Stable coins are pinned to 1 USD and never touch either.
type PriceService struct {
	cache       domain.PriceCache
	source      domain.PriceSource
	rec         metrics.Recorder
	logger      *slog.Logger
	ttl         time.Duration
	concurrency int
	symbols     []string
	now         func() time.Time
}

// NewPriceService creates a PriceService with all required dependencies.
func NewPriceService(
	cache domain.PriceCache,
	source domain.PriceSource,
	rec metrics.Recorder,
	logger *slog.Logger,
	cfg PriceServiceConfig,
) *PriceService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPriceTTL
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	symbols := cfg.Symbols
	if len(symbols) == 0 {
		for s := range domain.PricePairs {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	return &PriceService{
		cache:       cache,
		source:      source,
		rec:         rec,
		logger:      logger.With(slog.String("component", "price_service")),
		ttl:         cfg.TTL,
		concurrency: cfg.Concurrency,
		symbols:     symbols,
		now:         time.Now,
	}
}

// Resolve returns the USD price of symbol. A cached entry younger than the
// TTL is returned as is; otherwise the source is queried and the cache
// refreshed. Stale entries are never served, even when the fetch fails.
func (s *PriceService) Resolve(ctx context.Context, symbol string) (domain.TokenPrice, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return domain.TokenPrice{}, fmt.Errorf("%w: symbol is required", domain.ErrInvalidArgument)
	}

	now := s.now()
	if domain.IsStableCoin(sym) {
		s.rec.IncCounter(metrics.PriceStable, nil)
		return domain.NewTokenPrice(sym, decimal.NewFromInt(1), now), nil
	}

	cached, ok, err := s.cache.Get(ctx, sym)
	if err != nil {
		// A broken cache degrades to live fetches.
		s.logger.WarnContext(ctx, "price cache read failed",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
	}
	if ok && cached.Fresh(now, s.ttl) {
		s.rec.IncCounter(metrics.PriceCacheHit, nil)
		return domain.NewTokenPrice(sym, cached.Price, cached.ObservedAt), nil
	}
	s.rec.IncCounter(metrics.PriceCacheMiss, nil)

	if !s.source.Supports(sym) {
		return domain.TokenPrice{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedSymbol, sym)
	}

	start := time.Now()
	price, err := s.source.FetchPrice(ctx, sym)
	s.rec.ObserveLatency(metrics.PriceFetch, time.Since(start), metrics.Outcome(err == nil))
	if err != nil {
		s.rec.IncCounter(metrics.PriceFetchError, nil)
		s.logger.WarnContext(ctx, "price fetch failed",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrUnsupportedSymbol) || errors.Is(err, domain.ErrFetchFailed) {
			return domain.TokenPrice{}, err
		}
		return domain.TokenPrice{}, fmt.Errorf("%w for %s: %w", domain.ErrFetchFailed, sym, err)
	}

	observed := s.now()
	if err := s.cache.Set(ctx, domain.CachedPrice{Symbol: sym, Price: price, ObservedAt: observed}); err != nil {
		s.logger.WarnContext(ctx, "price cache write failed",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
	}
	return domain.NewTokenPrice(sym, price, observed), nil
}

// ResolveMany resolves every symbol concurrently and returns one entry per
// input in input order. A failed lookup yields a zero-price placeholder
// flagged Unresolved; the batch itself never fails.
func (s *PriceService) ResolveMany(ctx context.Context, symbols []string) []domain.TokenPrice {
	out := make([]domain.TokenPrice, len(symbols))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			p, err := s.Resolve(ctx, sym)
			if err != nil {
				p = domain.TokenPrice{
					Symbol:     strings.ToUpper(strings.TrimSpace(sym)),
					Price:      decimal.Zero,
					PriceUSD:   decimal.Zero,
					Timestamp:  s.now().UnixMilli(),
					Unresolved: true,
					Error:      err.Error(),
				}
			}
			out[i] = p
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// ResolveAll resolves every symbol the service knows a price source for.
func (s *PriceService) ResolveAll(ctx context.Context) []domain.TokenPrice {
	return s.ResolveMany(ctx, s.symbols)
}

// TokenWithPrice returns token metadata with its current price. A price
// lookup failure yields zero prices rather than an error; an unknown token
// is domain.ErrNotFound.
func (s *PriceService) TokenWithPrice(ctx context.Context, symbol string) (domain.TokenWithPrice, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	info, ok := domain.LookupToken(sym)
	if !ok {
		return domain.TokenWithPrice{}, fmt.Errorf("%w: token %s", domain.ErrNotFound, sym)
	}

	out := domain.TokenWithPrice{
		Symbol:   info.Symbol,
		Name:     info.Name,
		Decimals: info.Decimals,
		Price:    decimal.Zero,
		PriceUSD: decimal.Zero,
		Icon:     domain.TokenIcon(sym),
	}
	if p, err := s.Resolve(ctx, sym); err == nil {
		out.Price = p.Price
		out.PriceUSD = p.PriceUSD
	}
	return out, nil
}

// ToUSD converts a token amount into USD.
func (s *PriceService) ToUSD(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, err := s.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(p.PriceUSD), nil
}

// FromUSD converts a USD amount into token units. A zero price is
// domain.ErrZeroPrice for every amount, zero included.
func (s *PriceService) FromUSD(ctx context.Context, symbol string, usd decimal.Decimal) (decimal.Decimal, error) {
	p, err := s.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if p.PriceUSD.IsZero() {
		return decimal.Zero, fmt.Errorf("%w (%s)", domain.ErrZeroPrice, p.Symbol)
	}
	return usd.Div(p.PriceUSD), nil
}

// Reset drops every cached price.
func (s *PriceService) Reset(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("price_service: reset: %w", err)
	}
	return nil
}
