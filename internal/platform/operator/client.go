// Package operator is the client for direct operator-to-platform calls. It
// signs every request with the operator credential header and verifies the
// platform's webhook signatures.
package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/syamai/crypto-payment-mcp/internal/crypto"
	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/platform"
)

// Config is the immutable configuration of a Client.
type Config struct {
	OperatorID     string
	OperatorSecret string
	APIURL         string
	DomainURL      string
	PublicKeyPEM   string
	Timeout        time.Duration
}

// Client calls the operator platform. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	cfg        Config
	auth       *crypto.OperatorAuth // nil without operator id and secret
	verifier   *crypto.WebhookVerifier
	httpClient *http.Client
}

// NewClient creates a platform client. A configured but unparseable public
// key is rejected here so the problem surfaces at startup.
func NewClient(cfg Config) (*Client, error) {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.DomainURL = strings.TrimRight(cfg.DomainURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	if cfg.OperatorID != "" && cfg.OperatorSecret != "" {
		auth, err := crypto.NewOperatorAuth(cfg.OperatorID, cfg.OperatorSecret)
		if err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		c.auth = auth
	}

	if cfg.PublicKeyPEM != "" {
		v, err := crypto.NewWebhookVerifier(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		c.verifier = v
	}
	return c, nil
}

// IsConfigured reports whether operator id, secret and API URL are all set.
func (c *Client) IsConfigured() bool {
	return c.auth != nil && c.cfg.APIURL != ""
}

// String describes the client for logs with the operator secret redacted.
func (c *Client) String() string {
	auth := "none"
	if c.auth != nil {
		auth = c.auth.String()
	}
	return fmt.Sprintf("operator.Client{api=%s, domain=%s, auth=%s, webhook_key=%t}",
		c.cfg.APIURL, c.cfg.DomainURL, auth, c.verifier != nil)
}

// PaymentURL returns the hosted checkout URL for paymentID. The query keys
// are always in paymentId, id order.
func (c *Client) PaymentURL(paymentID string) string {
	return c.cfg.DomainURL + "/?paymentId=" + paymentID + "&id=" + c.cfg.OperatorID
}

// RequestPayment creates a payment for the user identified by userToken. The
// checkout URL returned by the platform is discarded in favour of PaymentURL.
func (c *Client) RequestPayment(ctx context.Context, userToken string) (domain.PlatformPayment, error) {
	body, err := c.get(ctx, userToken, "/operator/request-payment")
	if err != nil {
		return domain.PlatformPayment{}, fmt.Errorf("operator: request payment: %w", err)
	}

	if !gjson.GetBytes(body, "result").Bool() {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = "failed to request payment"
		}
		return domain.PlatformPayment{}, fmt.Errorf("operator: request payment: %w", &domain.UpstreamError{Message: msg})
	}

	paymentID := gjson.GetBytes(body, "data.paymentId").String()
	if paymentID == "" {
		return domain.PlatformPayment{}, fmt.Errorf("operator: request payment: %w", &domain.UpstreamError{Message: "platform returned no paymentId"})
	}

	return domain.PlatformPayment{
		PaymentID:  paymentID,
		PaymentURL: c.PaymentURL(paymentID),
	}, nil
}

// GetUserBalance returns the platform's balance record for the user. The
// upstream payload is kept verbatim in Raw.
func (c *Client) GetUserBalance(ctx context.Context, userToken string) (domain.PlatformBalance, error) {
	body, err := c.get(ctx, userToken, "/operator/user/balance")
	if err != nil {
		return domain.PlatformBalance{}, fmt.Errorf("operator: user balance: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.PlatformBalance{}, fmt.Errorf("operator: decode user balance: %w", platform.DecodeError(err))
	}

	return domain.PlatformBalance{
		UserID:  gjson.GetBytes(body, "userId").String(),
		Balance: gjson.GetBytes(body, "balance").Float(),
		Raw:     raw,
	}, nil
}

// VerifyWebhook checks a webhook signature against the configured platform
// public key. It fails with domain.ErrConfigurationMissing when no key is
// configured; otherwise the only outcome is true or false.
func (c *Client) VerifyWebhook(signature string, body any) (bool, error) {
	if c.verifier == nil {
		return false, fmt.Errorf("operator: public key not configured: %w", domain.ErrConfigurationMissing)
	}
	return c.verifier.Verify(signature, body), nil
}

// CanVerifyWebhooks reports whether a public key is configured.
func (c *Client) CanVerifyWebhooks() bool {
	return c.verifier != nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get sends an operator-authenticated GET on behalf of userToken.
func (c *Client) get(ctx context.Context, userToken, path string) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("operator credentials: %w", domain.ErrConfigurationMissing)
	}
	if userToken == "" {
		return nil, domain.ErrAuthenticationRequired
	}

	authHeader, err := c.auth.Header()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Operator-Authorization", authHeader)
	req.Header.Set("X-Operator-Id", c.auth.OperatorID)
	req.Header.Set("X-User-Authorization", userToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", platform.TransportError(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", platform.TransportError(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(respBody, "message").String()
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
		}
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}
	return respBody, nil
}
