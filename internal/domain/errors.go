package domain

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAuthenticationRequired is returned when an operation needing a user
	// token is called without one.
	ErrAuthenticationRequired = errors.New("authentication token is required")

	ErrUpstreamRejected     = errors.New("upstream rejected request")
	ErrUnsupportedSymbol    = errors.New("price source not available for token")
	ErrFetchFailed          = errors.New("failed to fetch price")
	ErrZeroPrice            = errors.New("cannot convert: price is 0")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrMissingCredentials   = errors.New("operator id and secret are required")
	ErrVerificationFailed   = errors.New("signature verification failed")
	ErrTimeout              = errors.New("request timed out")

	// ErrUnavailable and ErrBadResponse carry caller-facing text; the
	// transport detail stays in the wrapped error.
	ErrUnavailable = errors.New("API error: connection failed")
	ErrBadResponse = errors.New("API error: invalid response")
)

// UpstreamError carries the message an upstream service attached to a
// rejection. It matches ErrUpstreamRejected, plus ErrUnauthorized,
// ErrNotFound or ErrRateLimited when the HTTP status says so.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return "API error: " + e.Message
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() []error {
	errs := []error{ErrUpstreamRejected}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errs = append(errs, ErrUnauthorized)
	case http.StatusNotFound:
		errs = append(errs, ErrNotFound)
	case http.StatusTooManyRequests:
		errs = append(errs, ErrRateLimited)
	}
	return errs
}
