// Package ratelimit guards the chat endpoint with a per-key sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow allows at most limit events per key within window. State is
// per process; every instance enforces its own ceiling.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
	now    func() time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// PerMinute is the usual configuration.
func PerMinute(limit int) *SlidingWindow {
	return NewSlidingWindow(limit, time.Minute)
}

// Allow records an event for key and reports whether it fits the window.
// Rejected calls are not recorded. A limit <= 0 disables limiting.
func (w *SlidingWindow) Allow(key string) bool {
	if w.limit <= 0 {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	kept := prune(w.events[key], now.Add(-w.window))
	if len(kept) >= w.limit {
		w.events[key] = kept
		return false
	}
	w.events[key] = append(kept, now)
	return true
}

// Remaining reports how many events key may still make in the current window.
func (w *SlidingWindow) Remaining(key string) int {
	if w.limit <= 0 {
		return -1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := prune(w.events[key], w.now().Add(-w.window))
	w.events[key] = kept
	return w.limit - len(kept)
}

// Sweep drops keys with no events inside the window.
func (w *SlidingWindow) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-w.window)
	removed := 0
	for key, ts := range w.events {
		if kept := prune(ts, cutoff); len(kept) == 0 {
			delete(w.events, key)
			removed++
		} else {
			w.events[key] = kept
		}
	}
	return removed
}

func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	w.events = make(map[string][]time.Time)
	w.mu.Unlock()
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
