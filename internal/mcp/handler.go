package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
	"github.com/syamai/crypto-payment-mcp/internal/metrics"
	"github.com/syamai/crypto-payment-mcp/internal/service"
)

// Prices is the price surface the tools need.
type Prices interface {
	Resolve(ctx context.Context, symbol string) (domain.TokenPrice, error)
	ResolveMany(ctx context.Context, symbols []string) []domain.TokenPrice
	TokenWithPrice(ctx context.Context, symbol string) (domain.TokenWithPrice, error)
	ToUSD(ctx context.Context, symbol string, amount decimal.Decimal) (decimal.Decimal, error)
	FromUSD(ctx context.Context, symbol string, usd decimal.Decimal) (decimal.Decimal, error)
}

// Payments is the payment surface the tools need.
type Payments interface {
	RequestPayment(ctx context.Context, authToken string) (domain.PaymentRequest, error)
	PaymentStatus(ctx context.Context, authToken, paymentID string) (domain.PaymentStatus, error)
	UserBalance(ctx context.Context, authToken string) (domain.UserBalance, error)
	History(ctx context.Context, authToken string, q domain.HistoryQuery) (domain.PaymentHistory, error)
	Health(ctx context.Context) domain.HealthStatus
	PlatformConfigured() bool
	PlatformRequestPayment(ctx context.Context, userToken string) (domain.PlatformPayment, error)
	PlatformBalance(ctx context.Context, userToken string) (domain.PlatformBalance, error)
	VerifyWebhook(signature string, body any) (bool, error)
}

// Envelope is the uniform outcome of a tool call.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func succeed(data any) Envelope { return Envelope{Success: true, Data: data} }

func fail(msg string) Envelope { return Envelope{Error: msg} }

func failf(format string, a ...any) Envelope { return fail(fmt.Sprintf(format, a...)) }

// ToolHandler executes catalog tools against the services.
type ToolHandler struct {
	prices   Prices
	payments Payments
	rec      metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewToolHandler creates a ToolHandler. rec may be nil.
func NewToolHandler(prices Prices, payments Payments, rec metrics.Recorder, logger *slog.Logger) *ToolHandler {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &ToolHandler{
		prices:   prices,
		payments: payments,
		rec:      rec,
		logger:   logger.With(slog.String("component", "mcp_tools")),
		now:      time.Now,
	}
}

// Tools returns the catalog for the current configuration.
func (h *ToolHandler) Tools() []Tool {
	return Catalog(h.payments.PlatformConfigured())
}

// Call runs one tool. It never returns a Go error: every failure, including
// an unknown tool name, is reported in the envelope.
func (h *ToolHandler) Call(ctx context.Context, name string, args json.RawMessage) Envelope {
	start := h.now()
	env := h.dispatch(ctx, name, args)

	outcome := metrics.Outcome(env.Success)
	h.rec.IncCounter(metrics.ToolCall+"."+name, outcome)
	h.rec.ObserveLatency(metrics.ToolCall, h.now().Sub(start), outcome)
	if !env.Success {
		h.logger.InfoContext(ctx, "tool failed", slog.String("tool", name), slog.String("error", env.Error))
	}
	return env
}

func (h *ToolHandler) dispatch(ctx context.Context, name string, args json.RawMessage) Envelope {
	switch name {
	case ToolRequestPayment:
		return h.requestPayment(ctx, args)
	case ToolGetPaymentStatus:
		return h.paymentStatus(ctx, args)
	case ToolGetUserBalance:
		return h.userBalance(ctx, args)
	case ToolGetPaymentHistory:
		return h.paymentHistory(ctx, args)
	case ToolListNetworks:
		return h.listNetworks(args)
	case ToolListTokens:
		return h.listTokens(args)
	case ToolGetTokenInfo:
		return h.tokenInfo(ctx, args)
	case ToolGetTokenPrice:
		return h.tokenPrice(ctx, args)
	case ToolGetMultiplePrices:
		return h.multiplePrices(ctx, args)
	case ToolConvertAmount:
		return h.convertAmount(ctx, args)
	case ToolValidateAddress:
		return h.validateAddress(args)
	case ToolHealthCheck:
		return h.healthCheck(ctx)
	case ToolVerifyWebhook:
		return h.verifyWebhook(args)
	case ToolPlatformRequestPayment:
		if h.payments.PlatformConfigured() {
			return h.platformRequestPayment(ctx, args)
		}
	case ToolPlatformGetBalance:
		if h.payments.PlatformConfigured() {
			return h.platformBalance(ctx, args)
		}
	}
	return failf("Unknown tool: %s", name)
}

// ---- payment tools ----

func (h *ToolHandler) requestPayment(ctx context.Context, args json.RawMessage) Envelope {
	var in authRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.payments.RequestPayment(ctx, in.AuthToken)
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(map[string]any{
		"paymentId":  res.PaymentID,
		"paymentUrl": res.PaymentURL,
		"message":    res.Message,
	})
}

func (h *ToolHandler) paymentStatus(ctx context.Context, args json.RawMessage) Envelope {
	var in paymentStatusRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.payments.PaymentStatus(ctx, in.AuthToken, in.PaymentID)
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(res)
}

func (h *ToolHandler) userBalance(ctx context.Context, args json.RawMessage) Envelope {
	var in authRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.payments.UserBalance(ctx, in.AuthToken)
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(map[string]any{
		"userId":     res.UserID,
		"userName":   res.UserName,
		"balanceUsd": res.Balance,
		"message":    res.Message,
	})
}

func (h *ToolHandler) paymentHistory(ctx context.Context, args json.RawMessage) Envelope {
	var in historyRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.payments.History(ctx, in.AuthToken, domain.HistoryQuery{
		Page:   in.Page,
		Limit:  in.Limit,
		Status: in.Status,
	})
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(res)
}

// ---- network and token tools ----

type networkView struct {
	ID          domain.Network `json:"id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Icon        string         `json:"icon"`
	CanDeposit  bool           `json:"canDeposit"`
	CanWithdraw bool           `json:"canWithdraw"`
}

func (h *ToolHandler) listNetworks(args json.RawMessage) Envelope {
	var in listNetworksRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}

	var nets []domain.Network
	switch in.Type {
	case "deposit":
		nets = domain.DepositNetworks
	case "withdraw":
		nets = domain.WithdrawNetworks
	default:
		nets = domain.AllNetworks
	}

	views := make([]networkView, 0, len(nets))
	for _, n := range nets {
		v := networkView{
			ID:          n,
			Name:        string(n),
			CanDeposit:  domain.CanDeposit(n),
			CanWithdraw: domain.CanWithdraw(n),
		}
		if info, found := domain.LookupNetwork(n); found {
			v.Name, v.Symbol, v.Icon = info.Name, info.Symbol, info.Icon
		}
		views = append(views, v)
	}
	return succeed(map[string]any{"networks": views, "count": len(views)})
}

type tokenView struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    int    `json:"decimals"`
	Icon        string `json:"icon"`
	CanDeposit  bool   `json:"canDeposit"`
	CanWithdraw bool   `json:"canWithdraw"`
}

// defaultDecimals applies to tokens listed on a network without metadata.
const defaultDecimals = 18

func (h *ToolHandler) listTokens(args json.RawMessage) Envelope {
	var in listTokensRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	n := domain.Network(in.Network)
	deposit, withdraw := domain.DepositTokens(n), domain.WithdrawTokens(n)

	var symbols []string
	seen := map[string]bool{}
	add := func(list []string) {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				symbols = append(symbols, s)
			}
		}
	}
	if in.Type != "withdraw" {
		add(deposit)
	}
	if in.Type != "deposit" {
		add(withdraw)
	}

	views := make([]tokenView, 0, len(symbols))
	for _, s := range symbols {
		v := tokenView{
			Symbol:      s,
			Name:        s,
			Decimals:    defaultDecimals,
			Icon:        domain.TokenIcon(s),
			CanDeposit:  contains(deposit, s),
			CanWithdraw: contains(withdraw, s),
		}
		if info, found := domain.LookupToken(s); found {
			v.Name = info.Name
			if info.Decimals > 0 {
				v.Decimals = info.Decimals
			}
		}
		views = append(views, v)
	}
	return succeed(map[string]any{"network": in.Network, "tokens": views, "count": len(views)})
}

func (h *ToolHandler) tokenInfo(ctx context.Context, args json.RawMessage) Envelope {
	var in symbolRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.prices.TokenWithPrice(ctx, in.Symbol)
	if errors.Is(err, domain.ErrNotFound) {
		return failf("Token not found: %s", in.Symbol)
	}
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(res)
}

// ---- price tools ----

func (h *ToolHandler) tokenPrice(ctx context.Context, args json.RawMessage) Envelope {
	var in symbolRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.prices.Resolve(ctx, in.Symbol)
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(res)
}

func (h *ToolHandler) multiplePrices(ctx context.Context, args json.RawMessage) Envelope {
	var in multiplePricesRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	prices := h.prices.ResolveMany(ctx, in.Symbols)
	return succeed(map[string]any{
		"prices":    prices,
		"count":     len(prices),
		"timestamp": h.now().UnixMilli(),
	})
}

type amountView struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *ToolHandler) convertAmount(ctx context.Context, args json.RawMessage) Envelope {
	var in convertRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	amount := *in.Amount

	if in.Direction == "toUsd" {
		usd, err := h.prices.ToUSD(ctx, in.Symbol, amount)
		if err != nil {
			return h.failure(ctx, err)
		}
		return succeed(map[string]any{
			"from":      amountView{Symbol: in.Symbol, Amount: amount},
			"to":        amountView{Symbol: "USD", Amount: usd},
			"direction": in.Direction,
		})
	}

	units, err := h.prices.FromUSD(ctx, in.Symbol, amount)
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(map[string]any{
		"from":      amountView{Symbol: "USD", Amount: amount},
		"to":        amountView{Symbol: strings.ToUpper(in.Symbol), Amount: units},
		"direction": in.Direction,
	})
}

// ---- utility tools ----

func (h *ToolHandler) validateAddress(args json.RawMessage) Envelope {
	var in validateAddressRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	return succeed(service.ValidateAddress(in.Address, in.Network))
}

func (h *ToolHandler) healthCheck(ctx context.Context) Envelope {
	st := h.payments.Health(ctx)
	status := "healthy"
	if !st.Healthy {
		status = "unhealthy"
	}
	checked := st.CheckedAt
	if checked.IsZero() {
		checked = h.now()
	}

	data := map[string]any{
		"status":    status,
		"timestamp": checked.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"services":  map[string]bool{"paymentApi": st.Healthy},
	}
	if !st.Healthy && st.Reason != "" {
		data["error"] = st.Reason
	}
	return succeed(data)
}

func (h *ToolHandler) verifyWebhook(args json.RawMessage) Envelope {
	var in verifyWebhookRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}

	// A payload passed as a JSON string holds the raw body text.
	var body any = in.Payload
	var text string
	if err := json.Unmarshal(in.Payload, &text); err == nil {
		body = text
	}

	valid, err := h.payments.VerifyWebhook(in.Signature, body)
	if err != nil {
		return h.failure(context.Background(), err)
	}
	return succeed(map[string]bool{"valid": valid})
}

func (h *ToolHandler) platformRequestPayment(ctx context.Context, args json.RawMessage) Envelope {
	var in userTokenRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.payments.PlatformRequestPayment(ctx, in.UserToken)
	if err != nil {
		return h.failure(ctx, err)
	}
	return succeed(res)
}

func (h *ToolHandler) platformBalance(ctx context.Context, args json.RawMessage) Envelope {
	var in userTokenRequest
	if msg := decode(args, &in); msg != "" {
		return fail(msg)
	}
	res, err := h.payments.PlatformBalance(ctx, in.UserToken)
	if err != nil {
		return h.failure(ctx, err)
	}
	if res.Raw != nil {
		return succeed(res.Raw)
	}
	return succeed(res)
}

// failure converts a service error into a failure envelope. Messages for
// known conditions are passed through; anything else is logged and reported
// generically.
func (h *ToolHandler) failure(ctx context.Context, err error) Envelope {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return failf("Authentication failed: %s", upstreamMessage(err))
	case errors.Is(err, domain.ErrRateLimited):
		return fail("Too many requests to the payment API, try again later")
	case errors.As(err, &upstream):
		return fail(upstream.Error())
	case errors.Is(err, domain.ErrTimeout):
		return fail(domain.ErrTimeout.Error())
	case errors.Is(err, domain.ErrFetchFailed):
		return fail(firstClause(err.Error()))
	case errors.Is(err, domain.ErrUnavailable):
		return fail(domain.ErrUnavailable.Error())
	case errors.Is(err, domain.ErrBadResponse):
		return fail(domain.ErrBadResponse.Error())
	case errors.Is(err, domain.ErrAuthenticationRequired),
		errors.Is(err, domain.ErrUnsupportedSymbol),
		errors.Is(err, domain.ErrZeroPrice),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConfigurationMissing):
		return fail(err.Error())
	}
	h.logger.ErrorContext(ctx, "unexpected tool error", slog.String("error", err.Error()))
	return fail("Unknown error occurred")
}

// upstreamMessage returns the message the upstream attached to err.
func upstreamMessage(err error) string {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	return err.Error()
}

// firstClause drops the transport detail appended after the first ": ".
func firstClause(msg string) string {
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[:i]
	}
	return msg
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
