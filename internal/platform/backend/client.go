// Package backend is the REST client for the payment backend API. Every
// authenticated call takes the end user's bearer token as an argument; the
// client itself holds no per-user state.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/platform"
)

// Client is the REST client for the payment backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// "http://localhost:3001/v2".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RequestPayment asks the backend for a new payment id and checkout URL.
func (c *Client) RequestPayment(ctx context.Context, authToken string) (domain.PaymentRequest, error) {
	body, err := c.get(ctx, authToken, "/payment/payment-id")
	if err != nil {
		return domain.PaymentRequest{}, fmt.Errorf("backend: request payment: %w", err)
	}

	var resp struct {
		Result  *bool  `json:"result"`
		Message string `json:"message"`
		Data    struct {
			PaymentID  string `json:"paymentId"`
			PaymentURL string `json:"paymentUrl"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PaymentRequest{}, fmt.Errorf("backend: decode payment request: %w", platform.DecodeError(err))
	}
	if resp.Result != nil && !*resp.Result {
		msg := resp.Message
		if msg == "" {
			msg = "failed to request payment"
		}
		return domain.PaymentRequest{}, fmt.Errorf("backend: request payment: %w", &domain.UpstreamError{Message: msg})
	}

	return domain.PaymentRequest{
		PaymentID:  resp.Data.PaymentID,
		PaymentURL: resp.Data.PaymentURL,
		Message:    resp.Message,
	}, nil
}

// GetPaymentStatus returns the status of a single payment.
func (c *Client) GetPaymentStatus(ctx context.Context, authToken, paymentID string) (domain.PaymentStatus, error) {
	if paymentID == "" {
		return domain.PaymentStatus{}, fmt.Errorf("backend: payment status: %w: paymentId is required", domain.ErrInvalidArgument)
	}

	body, err := c.get(ctx, authToken, "/payment/status/"+url.PathEscape(paymentID))
	if err != nil {
		return domain.PaymentStatus{}, fmt.Errorf("backend: payment status %s: %w", paymentID, err)
	}

	var status domain.PaymentStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return domain.PaymentStatus{}, fmt.Errorf("backend: decode payment status: %w", platform.DecodeError(err))
	}
	return status, nil
}

// GetUserBalance returns the authenticated user's USD balance.
func (c *Client) GetUserBalance(ctx context.Context, authToken string) (domain.UserBalance, error) {
	body, err := c.get(ctx, authToken, "/payment/user/balance")
	if err != nil {
		return domain.UserBalance{}, fmt.Errorf("backend: user balance: %w", err)
	}

	var bal domain.UserBalance
	if err := json.Unmarshal(body, &bal); err != nil {
		return domain.UserBalance{}, fmt.Errorf("backend: decode user balance: %w", platform.DecodeError(err))
	}
	return bal, nil
}

// Authenticate resolves the token to the user it belongs to.
func (c *Client) Authenticate(ctx context.Context, authToken string) (domain.UserInfo, error) {
	body, err := c.get(ctx, authToken, "/payment/authenticate")
	if err != nil {
		return domain.UserInfo{}, fmt.Errorf("backend: authenticate: %w", err)
	}

	var info domain.UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.UserInfo{}, fmt.Errorf("backend: decode user info: %w", platform.DecodeError(err))
	}
	return info, nil
}

// GetPaymentHistory returns one page of the user's payments. Zero-valued
// query fields are left out of the request.
func (c *Client) GetPaymentHistory(ctx context.Context, authToken string, q domain.HistoryQuery) (domain.PaymentHistory, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}

	path := "/cashier/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.get(ctx, authToken, path)
	if err != nil {
		return domain.PaymentHistory{}, fmt.Errorf("backend: payment history: %w", err)
	}

	var hist domain.PaymentHistory
	if err := json.Unmarshal(body, &hist); err != nil {
		return domain.PaymentHistory{}, fmt.Errorf("backend: decode payment history: %w", platform.DecodeError(err))
	}
	if hist.Data == nil {
		hist.Data = []domain.PaymentStatus{}
	}
	return hist, nil
}

// Health probes GET /health. It never returns an error; failures are
// reported in the status.
func (c *Client) Health(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{CheckedAt: time.Now().UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		status.Reason = err.Error()
		return status
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status.Reason = platform.TransportError(err).Error()
		return status
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		status.Reason = fmt.Sprintf("health endpoint returned HTTP %d", resp.StatusCode)
		return status
	}
	status.Healthy = true
	return status
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get sends an authenticated GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, authToken, path string) ([]byte, error) {
	if authToken == "" {
		return nil, domain.ErrAuthenticationRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", platform.TransportError(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", platform.TransportError(err))
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkStatus maps non-2xx responses to a domain.UpstreamError carrying the
// backend's "message" field, or the HTTP status text when there is none.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := gjson.GetBytes(body, "message")
	text := msg.String()
	if msg.IsArray() {
		// Validation errors come back as a list of messages.
		parts := make([]string, 0, len(msg.Array()))
		for _, m := range msg.Array() {
			parts = append(parts, m.String())
		}
		text = strings.Join(parts, "; ")
	}
	if text == "" {
		text = fmt.Sprintf("Request failed with status code %d", statusCode)
	}
	return &domain.UpstreamError{StatusCode: statusCode, Message: text}
}
