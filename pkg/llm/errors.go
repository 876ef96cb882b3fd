package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"elearning-chatbot-be/internal/pkg/apperr"
)

var (
	// ErrRateLimited means the provider asked us to slow down (HTTP 429).
	ErrRateLimited = fmt.Errorf("llm: %w", apperr.ErrRateLimited)
	// ErrUnavailable covers 5xx gateway errors, timeouts and connection failures.
	ErrUnavailable = fmt.Errorf("llm: %w", apperr.ErrUpstreamUnavailable)
)

// OtherError is any failure that is neither rate limiting nor unavailability.
// It is also the terminal error of the retry loop, carrying the last cause.
type OtherError struct {
	Cause error
}

func (e *OtherError) Error() string {
	return fmt.Sprintf("llm: %v", e.Cause)
}

func (e *OtherError) Unwrap() error {
	return e.Cause
}

// StatusError is a non-200 reply from an HTTP provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, body)
}

// FromStatus wraps a provider status code with the matching category.
func FromStatus(provider string, statusCode int, body string) error {
	return Classify(&StatusError{Provider: provider, StatusCode: statusCode, Body: body})
}

// Classify maps an arbitrary provider error onto ErrRateLimited,
// ErrUnavailable or *OtherError. Already classified errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var other *OtherError
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.As(err, &other) {
		return err
	}

	if code, ok := statusCode(err); ok {
		switch {
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case code == http.StatusInternalServerError, code == http.StatusBadGateway,
			code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout,
			code == 529: // anthropic "overloaded"
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return &OtherError{Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	// *url.Error and dial errors both satisfy net.Error.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &OtherError{Cause: err}
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
