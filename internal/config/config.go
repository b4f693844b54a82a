// Package config defines the top-level configuration for the crypto payment
// MCP server and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CRYPTOPAY_* environment variables
// (and the legacy unprefixed names such as API_BASE_URL and OPERATOR_ID).
type Config struct {
	API      APIConfig      `toml:"api"`
	Platform PlatformConfig `toml:"platform"`
	Price    PriceConfig    `toml:"price"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// APIConfig holds the backend payment API endpoint. Requests to it carry the
// end user's bearer token.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// PlatformConfig holds the operator credentials used for direct calls to the
// payment platform and for webhook verification.
type PlatformConfig struct {
	OperatorID          string   `toml:"operator_id"`
	OperatorSecret      string   `toml:"operator_secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	APIURL              string   `toml:"api_url"`
	DomainURL           string   `toml:"domain_url"`
	PublicKey           string   `toml:"public_key"`
	PublicKeyPath       string   `toml:"public_key_path"`
	Timeout             duration `toml:"timeout"`
}

// PriceConfig holds the market price source and cache parameters.
type PriceConfig struct {
	SourceURL   string   `toml:"source_url"`
	Timeout     duration `toml:"timeout"`
	CacheTTL    duration `toml:"cache_ttl"`
	Concurrency int      `toml:"concurrency"`
	// Cache selects the price cache backend: "memory" or "redis".
	Cache string `toml:"cache"`
}

// RedisConfig holds Redis connection parameters. Redis is only dialled when
// price.cache is "redis".
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters for the webhook event
// store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the webhook
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters for the webhook receiver.
type ServerConfig struct {
	Port            int      `toml:"port"`
	SignatureHeader string   `toml:"signature_header"`
	RateLimitRPS    float64  `toml:"rate_limit_rps"`
	RateLimitBurst  int      `toml:"rate_limit_burst"`
	CORSOrigins     []string `toml:"cors_origins"`
	// APIKey guards the stored-event query endpoint. Empty disables the check.
	APIKey          string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:3001/v2",
			Timeout: duration{30 * time.Second},
		},
		Platform: PlatformConfig{
			Timeout: duration{30 * time.Second},
		},
		Price: PriceConfig{
			SourceURL:   "https://api.binance.com",
			Timeout:     duration{5 * time.Second},
			CacheTTL:    duration{60 * time.Second},
			Concurrency: 8,
			Cache:       "memory",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "cryptopay:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "cryptopay-webhooks",
			ForcePathStyle: true,
			Prefix:         "webhooks",
		},
		Server: ServerConfig{
			Port:            8080,
			SignatureHeader: "X-Signature",
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Notify: NotifyConfig{
			Events: []string{"payment_success", "payment_failed", "webhook_rejected"},
		},
		Mode:     "stdio",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"stdio":  true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ServesHTTP reports whether the mode runs the webhook HTTP server.
func (c *Config) ServesHTTP() bool {
	m := strings.ToLower(c.Mode)
	return m == "server" || m == "full"
}

// ServesMCP reports whether the mode runs the MCP stdio transport.
func (c *Config) ServesMCP() bool {
	m := strings.ToLower(c.Mode)
	return m == "stdio" || m == "full"
}

// PlatformConfigured reports whether direct platform calls can be made.
func (c *Config) PlatformConfigured() bool {
	return c.Platform.OperatorID != "" && c.Platform.OperatorSecret != "" && c.Platform.APIURL != ""
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: stdio, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, "api: base_url must not be empty")
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be > 0")
	}

	// Platform: operator id and secret must be set together, or both empty.
	hasID := c.Platform.OperatorID != ""
	hasSecret := c.Platform.OperatorSecret != "" || c.Platform.EncryptedSecretPath != ""
	if hasID != hasSecret {
		errs = append(errs, "platform: operator_id and operator_secret (or encrypted_secret_path) must be set together")
	}
	if c.Platform.EncryptedSecretPath != "" && c.Platform.SecretPassword == "" {
		errs = append(errs, "platform: secret_password is required when encrypted_secret_path is set")
	}
	if c.Platform.Timeout.Duration <= 0 {
		errs = append(errs, "platform: timeout must be > 0")
	}

	// Price
	if c.Price.SourceURL == "" {
		errs = append(errs, "price: source_url must not be empty")
	}
	if c.Price.Timeout.Duration <= 0 {
		errs = append(errs, "price: timeout must be > 0")
	}
	if c.Price.CacheTTL.Duration <= 0 {
		errs = append(errs, "price: cache_ttl must be > 0")
	}
	if c.Price.Concurrency < 1 {
		errs = append(errs, "price: concurrency must be >= 1")
	}
	switch c.Price.Cache {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when price.cache is redis")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("price: unknown cache %q (valid: memory, redis)", c.Price.Cache))
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.ServesHTTP() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.SignatureHeader == "" {
			errs = append(errs, "server: signature_header must not be empty")
		}
		if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
			errs = append(errs, "server: rate_limit_rps must be > 0 and rate_limit_burst >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
