package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"elearning-chatbot-be/internal/pkg/logger"
)

// RetryPolicy controls how Client retries a failing provider.
type RetryPolicy struct {
	MaxRetries     int           // total attempts, at least 1
	BaseDelay      time.Duration // rate limited: BaseDelay * 2^k
	FixedDelay     time.Duration // unavailable and other failures
	MaxBackoff     time.Duration // 0 means uncapped
	AttemptTimeout time.Duration // 0 means only the caller's deadline applies
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BaseDelay:      2 * time.Second,
		FixedDelay:     3 * time.Second,
		MaxBackoff:     30 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Backoff returns the wait after the k-th consecutive rate limited failure (k starts at 0).
func (p RetryPolicy) Backoff(k int) time.Duration {
	if k > 30 {
		k = 30
	}
	d := p.BaseDelay * time.Duration(1<<uint(k))
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client wraps a provider with the retry policy and the shared pacer.
type Client struct {
	provider LLMProvider
	policy   RetryPolicy
	pacer    *Pacer
	logger   logger.ILogger
	sleep    SleepFunc
}

type ClientOption func(*Client)

func WithPacer(p *Pacer) ClientOption {
	return func(c *Client) {
		c.pacer = p
	}
}

func WithLogger(l logger.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func WithSleep(fn SleepFunc) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

func NewClient(provider LLMProvider, policy RetryPolicy, opts ...ClientOption) *Client {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	c := &Client{
		provider: provider,
		policy:   policy,
		logger:   logger.NewNopLogger(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return c.provider.Name()
}

func (c *Client) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.provider.Generate(ctx, prompt, options...)
	})
}

func (c *Client) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.provider.Chat(ctx, history, options...)
	})
}

func (c *Client) do(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	rateLimited := 0
	attempts := 0

	for attempts < c.policy.MaxRetries {
		if err := c.pacer.Wait(ctx); err != nil {
			lastErr = Classify(err)
			break
		}
		attempts++

		out, err := c.attempt(ctx, call)
		if err == nil {
			if attempts > 1 {
				c.logger.Info("LLM", "Model call succeeded after retry", map[string]interface{}{
					"provider": c.provider.Name(),
					"attempts": attempts,
				})
			}
			return out, nil
		}
		lastErr = Classify(err)

		if ctx.Err() != nil || attempts == c.policy.MaxRetries {
			break
		}

		delay := c.policy.FixedDelay
		if errors.Is(lastErr, ErrRateLimited) {
			delay = c.policy.Backoff(rateLimited)
			rateLimited++
		}
		c.logger.Warn("LLM", "Model call failed, retrying", map[string]interface{}{
			"provider": c.provider.Name(),
			"attempt":  attempts,
			"max":      c.policy.MaxRetries,
			"delay":    delay.String(),
			"error":    lastErr,
		})
		if err := c.sleep(ctx, delay); err != nil {
			break
		}
	}

	c.logger.Error("LLM", "Model call failed", map[string]interface{}{
		"provider": c.provider.Name(),
		"attempts": attempts,
		"error":    lastErr,
	})
	return "", &OtherError{Cause: fmt.Errorf("after %d attempts: %w", attempts, lastErr)}
}

func (c *Client) attempt(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	if c.policy.AttemptTimeout <= 0 {
		return call(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
	defer cancel()
	return call(attemptCtx)
}
