package config

import (
	"fmt"
	"os"

	"github.com/syamai/crypto-payment-mcp/internal/crypto"
)

// ResolveSecrets fills in values that may live outside the config file: the
// operator secret from an encrypted file and the webhook public key from a PEM
// file. Inline values always win.
func ResolveSecrets(cfg *Config) error {
	secret, err := crypto.LoadSecret(crypto.SecretSource{
		Raw:           cfg.Platform.OperatorSecret,
		EncryptedPath: cfg.Platform.EncryptedSecretPath,
		Password:      cfg.Platform.SecretPassword,
	})
	if err != nil {
		return fmt.Errorf("config: operator secret: %w", err)
	}
	cfg.Platform.OperatorSecret = secret

	if cfg.Platform.PublicKey == "" && cfg.Platform.PublicKeyPath != "" {
		data, err := os.ReadFile(cfg.Platform.PublicKeyPath)
		if err != nil {
			return fmt.Errorf("config: reading public key: %w", err)
		}
		cfg.Platform.PublicKey = string(data)
	}
	return nil
}

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Platform
	redact(&out.Platform.OperatorSecret)
	redact(&out.Platform.SecretPassword)

	// Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	redact(&out.Redis.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
