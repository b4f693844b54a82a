// Package platform holds the HTTP clients for the payment backend, the
// operator platform, and the market price source.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// TransportError maps deadline expiry and network timeouts to
// domain.ErrTimeout and every other failure to reach the upstream to
// domain.ErrUnavailable. Cancellation is returned unchanged.
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

// DecodeError marks an upstream body that could not be decoded.
func DecodeError(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrBadResponse, err)
}
