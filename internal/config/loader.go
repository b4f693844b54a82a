package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. A missing file is not an error, so env-only deployments work.
// The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set (i.e. not empty). The
// unprefixed names are applied first so CRYPTOPAY_* always wins.
func applyEnvOverrides(cfg *Config) {
	// ── Legacy names ──
	setStr(&cfg.API.BaseURL, "API_BASE_URL")
	setMillis(&cfg.API.Timeout, "API_TIMEOUT")
	setStr(&cfg.Platform.OperatorID, "OPERATOR_ID")
	setStr(&cfg.Platform.OperatorSecret, "OPERATOR_SECRET")
	setStr(&cfg.Platform.APIURL, "PLATFORM_API_URL")
	setStr(&cfg.Platform.DomainURL, "PLATFORM_DOMAIN_URL")
	setStr(&cfg.Platform.PublicKey, "OPERATOR_PUBLIC_KEY")

	// ── API ──
	setStr(&cfg.API.BaseURL, "CRYPTOPAY_API_BASE_URL")
	setDuration(&cfg.API.Timeout, "CRYPTOPAY_API_TIMEOUT")

	// ── Platform ──
	setStr(&cfg.Platform.OperatorID, "CRYPTOPAY_PLATFORM_OPERATOR_ID")
	setStr(&cfg.Platform.OperatorSecret, "CRYPTOPAY_PLATFORM_OPERATOR_SECRET")
	setStr(&cfg.Platform.EncryptedSecretPath, "CRYPTOPAY_PLATFORM_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Platform.SecretPassword, "CRYPTOPAY_PLATFORM_SECRET_PASSWORD")
	setStr(&cfg.Platform.APIURL, "CRYPTOPAY_PLATFORM_API_URL")
	setStr(&cfg.Platform.DomainURL, "CRYPTOPAY_PLATFORM_DOMAIN_URL")
	setStr(&cfg.Platform.PublicKey, "CRYPTOPAY_PLATFORM_PUBLIC_KEY")
	setStr(&cfg.Platform.PublicKeyPath, "CRYPTOPAY_PLATFORM_PUBLIC_KEY_PATH")
	setDuration(&cfg.Platform.Timeout, "CRYPTOPAY_PLATFORM_TIMEOUT")

	// ── Price ──
	setStr(&cfg.Price.SourceURL, "CRYPTOPAY_PRICE_SOURCE_URL")
	setDuration(&cfg.Price.Timeout, "CRYPTOPAY_PRICE_TIMEOUT")
	setDuration(&cfg.Price.CacheTTL, "CRYPTOPAY_PRICE_CACHE_TTL")
	setInt(&cfg.Price.Concurrency, "CRYPTOPAY_PRICE_CONCURRENCY")
	setStr(&cfg.Price.Cache, "CRYPTOPAY_PRICE_CACHE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CRYPTOPAY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CRYPTOPAY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CRYPTOPAY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CRYPTOPAY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CRYPTOPAY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CRYPTOPAY_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "CRYPTOPAY_REDIS_KEY_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CRYPTOPAY_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CRYPTOPAY_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "CRYPTOPAY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CRYPTOPAY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CRYPTOPAY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CRYPTOPAY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CRYPTOPAY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CRYPTOPAY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CRYPTOPAY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CRYPTOPAY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CRYPTOPAY_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CRYPTOPAY_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CRYPTOPAY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CRYPTOPAY_S3_REGION")
	setStr(&cfg.S3.Bucket, "CRYPTOPAY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CRYPTOPAY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CRYPTOPAY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CRYPTOPAY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CRYPTOPAY_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "CRYPTOPAY_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "CRYPTOPAY_SERVER_PORT")
	setStr(&cfg.Server.SignatureHeader, "CRYPTOPAY_SERVER_SIGNATURE_HEADER")
	setFloat64(&cfg.Server.RateLimitRPS, "CRYPTOPAY_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "CRYPTOPAY_SERVER_RATE_LIMIT_BURST")
	setStringSlice(&cfg.Server.CORSOrigins, "CRYPTOPAY_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CRYPTOPAY_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CRYPTOPAY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CRYPTOPAY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CRYPTOPAY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CRYPTOPAY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CRYPTOPAY_MODE")
	setStr(&cfg.LogLevel, "CRYPTOPAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// setMillis parses a bare integer as milliseconds.
func setMillis(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			dst.Duration = time.Duration(n) * time.Millisecond
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
