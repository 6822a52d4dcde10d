package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter is the process-local fallback used when Redis is down. It is
// stricter than the shared limiter by construction: each bot instance counts
// only its own traffic.
type MemoryLimiter struct {
	mu      sync.Mutex
	arrived map[string][]time.Time
	log     *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter builds an in-process sliding-window limiter.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		arrived: make(map[string][]time.Time),
		log:     log,
	}
}

func (m *MemoryLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := trimBefore(m.arrived[key], windowStart)

	allowed := len(recent) < limit
	if allowed {
		recent = append(recent, now)
	}
	m.arrived[key] = recent

	remaining := limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}

// Cleanup drops keys whose newest arrival is older than maxAge, keeping the
// map from growing with every user the bot has ever seen.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, arrivals := range m.arrived {
		if len(arrivals) == 0 || arrivals[len(arrivals)-1].Before(cutoff) {
			delete(m.arrived, key)
		}
	}
}

func trimBefore(arrivals []time.Time, cutoff time.Time) []time.Time {
	drop := 0
	for drop < len(arrivals) && arrivals[drop].Before(cutoff) {
		drop++
	}
	if drop == 0 {
		return arrivals
	}

	kept := len(arrivals) - drop
	copy(arrivals, arrivals[drop:])
	return arrivals[:kept]
}
