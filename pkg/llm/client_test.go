package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"elearning-chatbot-be/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu      sync.Mutex
	name    string
	results []error
	calls   int
}

func (p *scriptedProvider) next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i < len(p.results) && p.results[i] != nil {
		return "", p.results[i]
	}
	return "answer from " + p.name, nil
}

func (p *scriptedProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return p.next()
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return p.next()
}

func (p *scriptedProvider) Name() string {
	return p.name
}

type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, FixedDelay: 3 * time.Second}
}

func TestClientRetryPolicy(t *testing.T) {
	rate := FromStatus("test", http.StatusTooManyRequests, "slow down")
	unavailable := FromStatus("test", http.StatusServiceUnavailable, "down")
	other := FromStatus("test", http.StatusBadRequest, "bad prompt")

	tests := []struct {
		name      string
		results   []error
		wantOK    bool
		wantWaits []time.Duration
		wantCalls int
		wantKind  apperr.Kind
	}{
		{"first try", nil, true, nil, 1, ""},
		{"rate limited twice then success", []error{rate, rate}, true, []time.Duration{2 * time.Second, 4 * time.Second}, 3, ""},
		{"unavailable uses fixed delay", []error{unavailable}, true, []time.Duration{3 * time.Second}, 2, ""},
		{"other keeps backoff state", []error{rate, other, rate}, true, []time.Duration{2 * time.Second, 3 * time.Second, 4 * time.Second}, 4, ""},
		{"exhausted rate limited", []error{rate, rate, rate}, false, []time.Duration{2 * time.Second, 4 * time.Second}, 3, apperr.KindRateLimited},
		{"exhausted unavailable", []error{unavailable, unavailable, unavailable}, false, []time.Duration{3 * time.Second, 3 * time.Second}, 3, apperr.KindUpstreamUnavailable},
		{"exhausted other", []error{other, other, other}, false, []time.Duration{3 * time.Second, 3 * time.Second}, 3, apperr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{name: "scripted", results: tt.results}
			rec := &recordingSleep{}
			policy := testPolicy()
			if tt.wantCalls > policy.MaxRetries {
				policy.MaxRetries = tt.wantCalls
			}
			c := NewClient(p, policy, WithSleep(rec.sleep))

			out, err := c.Generate(context.Background(), "hello")

			assert.Equal(t, tt.wantCalls, p.calls)
			assert.Equal(t, tt.wantWaits, rec.waits)
			if tt.wantOK {
				require.NoError(t, err)
				assert.Equal(t, "answer from scripted", out)
				return
			}
			require.Error(t, err)
			var oe *OtherError
			assert.True(t, errors.As(err, &oe))
			assert.Contains(t, err.Error(), "after 3 attempts")
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
}

func TestClientElapsedReflectsBackoff(t *testing.T) {
	rate := FromStatus("test", http.StatusTooManyRequests, "")
	p := &scriptedProvider{name: "scripted", results: []error{rate, rate}}
	base := 20 * time.Millisecond
	c := NewClient(p, RetryPolicy{MaxRetries: 3, BaseDelay: base, FixedDelay: time.Millisecond})

	start := time.Now()
	out, err := c.Generate(context.Background(), "hello")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "answer from scripted", out)
	assert.GreaterOrEqual(t, elapsed, base+2*base)
}

func TestClientStopsOnCancelledContext(t *testing.T) {
	unavailable := FromStatus("test", http.StatusBadGateway, "")
	p := &scriptedProvider{name: "scripted", results: []error{unavailable, unavailable, unavailable}}
	ctx, cancel := context.WithCancel(context.Background())

	c := NewClient(p, testPolicy(), WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := c.Generate(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestClientAttemptTimeout(t *testing.T) {
	slow := &blockingProvider{}
	c := NewClient(slow, RetryPolicy{MaxRetries: 1, AttemptTimeout: 10 * time.Millisecond})

	_, err := c.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

type blockingProvider struct{}

func (blockingProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (b blockingProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return b.Chat(ctx, nil, options...)
}

func (blockingProvider) Name() string {
	return "blocking"
}

func TestBackoffCap(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxBackoff: 5 * time.Second}
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 5*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(100))
}
