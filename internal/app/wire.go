package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/syamai/crypto-payment-mcp/internal/blob/s3"
	"github.com/syamai/crypto-payment-mcp/internal/cache/memory"
	"github.com/syamai/crypto-payment-mcp/internal/cache/redis"
	"github.com/syamai/crypto-payment-mcp/internal/config"
	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/metrics"
	"github.com/syamai/crypto-payment-mcp/internal/notify"
	"github.com/syamai/crypto-payment-mcp/internal/platform/backend"
	"github.com/syamai/crypto-payment-mcp/internal/platform/binance"
	"github.com/syamai/crypto-payment-mcp/internal/platform/operator"
	"github.com/syamai/crypto-payment-mcp/internal/service"
	"github.com/syamai/crypto-payment-mcp/internal/store/postgres"
)

// webhookDedupTTL is how long a delivery is remembered for deduplication.
const webhookDedupTTL = 24 * time.Hour

// Dependencies bundles the services the transports need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Prices   *service.PriceService
	Payments *service.PaymentService
	Webhooks *service.WebhookService

	// Optional infrastructure; nil when not configured.
	WebhookStore domain.WebhookStore
	Notifier     *notify.Notifier

	Metrics  metrics.Recorder
	Registry *prometheus.Registry
}

// Wire builds every dependency from cfg. Infrastructure that a mode does not
// need is never dialled. Redis backs the price cache and webhook dedup when
// selected; Postgres and S3 only serve the webhook receiver.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Registry: prometheus.NewRegistry()}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.NewPrometheusRecorder(deps.Registry)

	// --- Redis (shared price cache and webhook dedup) ---
	var redisClient *redis.Client
	if cfg.Price.Cache == "redis" {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		redisClient = rc
	}

	// --- Prices ---
	var priceCache domain.PriceCache = memory.NewPriceCache()
	if redisClient != nil {
		// Entries outlive the TTL so the monotonic write check still sees
		// the newest observation.
		priceCache = redis.NewPriceCache(redisClient, 10*cfg.Price.CacheTTL.Duration)
	}
	source := binance.NewClient(cfg.Price.SourceURL, cfg.Price.Timeout.Duration, nil)
	deps.Prices = service.NewPriceService(priceCache, source, deps.Metrics, logger, service.PriceServiceConfig{
		TTL:         cfg.Price.CacheTTL.Duration,
		Concurrency: cfg.Price.Concurrency,
	})

	// --- Payments ---
	platform, err := operator.NewClient(operator.Config{
		OperatorID:     cfg.Platform.OperatorID,
		OperatorSecret: cfg.Platform.OperatorSecret,
		APIURL:         cfg.Platform.APIURL,
		DomainURL:      cfg.Platform.DomainURL,
		PublicKeyPEM:   cfg.Platform.PublicKey,
		Timeout:        cfg.Platform.Timeout.Duration,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: platform: %w", err))
	}
	logger.InfoContext(ctx, "platform client ready",
		slog.Bool("configured", platform.IsConfigured()),
		slog.String("client", platform.String()),
	)
	if !platform.CanVerifyWebhooks() {
		logger.WarnContext(ctx, "no platform public key configured; webhook verification disabled")
	}
	deps.Payments = service.NewPaymentService(
		backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout.Duration),
		platform,
		logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	if !cfg.ServesHTTP() {
		return deps, cleanup, nil
	}

	// --- Webhook receiver infrastructure ---
	whDeps := service.WebhookDeps{
		Verifier:      platform,
		Metrics:       deps.Metrics,
		ArchivePrefix: cfg.S3.Prefix,
	}
	if deps.Notifier != nil {
		whDeps.Notifier = deps.Notifier
	}
	if redisClient != nil {
		whDeps.Dedup = redis.NewWebhookDedup(redisClient, webhookDedupTTL)
	} else {
		whDeps.Dedup = memory.NewWebhookDedup(webhookDedupTTL)
	}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		store := postgres.NewWebhookStore(pgClient.Pool())
		deps.WebhookStore = store
		whDeps.Store = store
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := s3Client.Health(ctx); err != nil {
			// Archiving is best effort; the receiver still runs.
			logger.WarnContext(ctx, "s3 archive bucket unreachable",
				slog.String("bucket", s3Client.Bucket()),
				slog.String("error", err.Error()),
			)
		}
		whDeps.Archive = s3blob.NewWriter(s3Client, "")
	}

	deps.Webhooks = service.NewWebhookService(whDeps, logger)
	return deps, cleanup, nil
}
