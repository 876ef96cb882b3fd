package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"elearning-chatbot-be/internal/pkg/logger"
)

// SessionCleaner is satisfied by session.Store.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// RateSweeper is satisfied by ratelimit.SlidingWindow.
type RateSweeper interface {
	Sweep() int
}

// SessionJanitor ends idle sessions on a fixed interval and drops idle
// rate limiter keys on the same tick.
type SessionJanitor struct {
	sessions SessionCleaner
	limiter  RateSweeper
	ttl      time.Duration
	interval time.Duration
	logger   logger.ILogger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

func NewSessionJanitor(sessions SessionCleaner, ttl, interval time.Duration, log logger.ILogger) *SessionJanitor {
	return &SessionJanitor{
		sessions: sessions,
		ttl:      ttl,
		interval: interval,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithRateLimiter must be called before Start.
func (j *SessionJanitor) WithRateLimiter(l RateSweeper) *SessionJanitor {
	j.limiter = l
	return j
}

// Start launches the sweep loop once; later calls are no-ops. A loop started
// after Stop exits immediately.
func (j *SessionJanitor) Start(ctx context.Context) {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	go j.run(ctx)
}

// Stop ends the loop and waits for a sweep in progress.
func (j *SessionJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	if j.started.Load() {
		<-j.done
	}
}

func (j *SessionJanitor) run(ctx context.Context) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass and returns the number of sessions ended.
func (j *SessionJanitor) Sweep(ctx context.Context) int {
	if j.limiter != nil {
		j.limiter.Sweep()
	}
	n, err := j.sessions.CleanupExpired(ctx, j.ttl)
	if err != nil {
		j.logger.Error("JANITOR", "Session cleanup failed", map[string]interface{}{"error": err})
		return 0
	}
	return n
}
