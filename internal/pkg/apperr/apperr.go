// Package apperr is the error taxonomy shared by the chatbot core. Lower layers
// wrap one of the sentinels so the orchestrator and the HTTP layer can decide
// what becomes user visible.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindNotFound            Kind = "not_found"
	KindInvalid             Kind = "invalid"
	KindInternal            Kind = "internal"
)

var (
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalid             = errors.New("invalid input")
	ErrInternal            = errors.New("internal error")
)

var sentinels = []struct {
	err  error
	kind Kind
}{
	{ErrRateLimited, KindRateLimited},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable},
	{ErrNotFound, KindNotFound},
	{ErrInvalid, KindInvalid},
	{ErrInternal, KindInternal},
}

// KindOf classifies err. Deadline errors count as upstream unavailability,
// anything unrecognised is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUpstreamUnavailable
	}
	return KindInternal
}

func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Unavailable(cause error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, cause)
}

func Internal(cause error) error {
	return fmt.Errorf("%w: %w", ErrInternal, cause)
}
