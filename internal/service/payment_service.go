package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// PaymentBackend is the bearer-authenticated payment API.
type PaymentBackend interface {
	RequestPayment(ctx context.Context, authToken string) (domain.PaymentRequest, error)
	GetPaymentStatus(ctx context.Context, authToken, paymentID string) (domain.PaymentStatus, error)
	GetUserBalance(ctx context.Context, authToken string) (domain.UserBalance, error)
	Authenticate(ctx context.Context, authToken string) (domain.UserInfo, error)
	GetPaymentHistory(ctx context.Context, authToken string, q domain.HistoryQuery) (domain.PaymentHistory, error)
	Health(ctx context.Context) domain.HealthStatus
}

// PlatformGateway is the operator-authenticated platform API.
type PlatformGateway interface {
	IsConfigured() bool
	RequestPayment(ctx context.Context, userToken string) (domain.PlatformPayment, error)
	GetUserBalance(ctx context.Context, userToken string) (domain.PlatformBalance, error)
	VerifyWebhook(signature string, body any) (bool, error)
}

// MaxHistoryLimit caps the page size requested from the backend.
const MaxHistoryLimit = 100

// PaymentService fronts the payment backend and, when configured, the
// operator platform.
type PaymentService struct {
	backend  PaymentBackend
	platform PlatformGateway
	logger   *slog.Logger
}

// NewPaymentService creates a PaymentService. platform may be nil.
func NewPaymentService(backend PaymentBackend, platform PlatformGateway, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		backend:  backend,
		platform: platform,
		logger:   logger.With(slog.String("component", "payment_service")),
	}
}

func (s *PaymentService) RequestPayment(ctx context.Context, authToken string) (domain.PaymentRequest, error) {
	req, err := s.backend.RequestPayment(ctx, authToken)
	if err != nil {
		return domain.PaymentRequest{}, err
	}
	s.logger.InfoContext(ctx, "payment requested", slog.String("payment_id", req.PaymentID))
	return req, nil
}

func (s *PaymentService) PaymentStatus(ctx context.Context, authToken, paymentID string) (domain.PaymentStatus, error) {
	return s.backend.GetPaymentStatus(ctx, authToken, paymentID)
}

// UserBalance returns the user's balance. When the balance record carries no
// user name it is looked up through the authenticate endpoint; a failed
// lookup leaves the name empty.
func (s *PaymentService) UserBalance(ctx context.Context, authToken string) (domain.UserBalance, error) {
	bal, err := s.backend.GetUserBalance(ctx, authToken)
	if err != nil {
		return domain.UserBalance{}, err
	}
	if bal.UserName != "" {
		return bal, nil
	}

	info, err := s.backend.Authenticate(ctx, authToken)
	if err != nil {
		s.logger.DebugContext(ctx, "user name lookup failed", slog.String("error", err.Error()))
		return bal, nil
	}
	bal.UserName = info.UserName
	if bal.UserID == "" {
		bal.UserID = info.UserID
	}
	return bal, nil
}

// History returns one page of payment history. Negative paging values are
// rejected and the limit is capped at MaxHistoryLimit.
func (s *PaymentService) History(ctx context.Context, authToken string, q domain.HistoryQuery) (domain.PaymentHistory, error) {
	if q.Page < 0 || q.Limit < 0 {
		return domain.PaymentHistory{}, fmt.Errorf("%w: page and limit must not be negative", domain.ErrInvalidArgument)
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
	return s.backend.GetPaymentHistory(ctx, authToken, q)
}

// Health reports backend reachability. It never fails.
func (s *PaymentService) Health(ctx context.Context) domain.HealthStatus {
	st := s.backend.Health(ctx)
	if !st.Healthy {
		s.logger.WarnContext(ctx, "backend unhealthy", slog.String("reason", st.Reason))
	}
	return st
}

// PlatformConfigured reports whether direct platform operations are
// available.
func (s *PaymentService) PlatformConfigured() bool {
	return s.platform != nil && s.platform.IsConfigured()
}

func (s *PaymentService) PlatformRequestPayment(ctx context.Context, userToken string) (domain.PlatformPayment, error) {
	if !s.PlatformConfigured() {
		return domain.PlatformPayment{}, fmt.Errorf("platform: %w", domain.ErrConfigurationMissing)
	}
	p, err := s.platform.RequestPayment(ctx, userToken)
	if err != nil {
		return domain.PlatformPayment{}, err
	}
	s.logger.InfoContext(ctx, "platform payment requested", slog.String("payment_id", p.PaymentID))
	return p, nil
}

func (s *PaymentService) PlatformBalance(ctx context.Context, userToken string) (domain.PlatformBalance, error) {
	if !s.PlatformConfigured() {
		return domain.PlatformBalance{}, fmt.Errorf("platform: %w", domain.ErrConfigurationMissing)
	}
	return s.platform.GetUserBalance(ctx, userToken)
}

// VerifyWebhook checks a webhook signature against the platform public key.
func (s *PaymentService) VerifyWebhook(signature string, body any) (bool, error) {
	if s.platform == nil {
		return false, fmt.Errorf("platform: %w", domain.ErrConfigurationMissing)
	}
	return s.platform.VerifyWebhook(signature, body)
}
