// Package ratelimit throttles how many updates a single Telegram user can
// push through the bot inside a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one limit evaluation. A denied check is a normal
// result, not an error; errors mean the backend itself failed.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter evaluates a sliding-window budget for a key.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
