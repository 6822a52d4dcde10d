package ratelimit

import (
	"time"

	"github.com/kwitt-bot/kwitt/pkg/config"
)

// Rules encapsulates the configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether rate limiting is switched on at all.
func (r *Rules) Enabled() bool {
	return r.config.Enabled && r.config.PerUser.Limit > 0 && r.config.PerUser.Window > 0
}

// IsWhitelisted returns true if the telegram user id bypasses rate limits.
func (r *Rules) IsWhitelisted(telegramID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == telegramID {
			return true
		}
	}
	return false
}

// PerUserLimit returns the per-user rate limiting rule.
func (r *Rules) PerUserLimit() (int, time.Duration) {
	return r.config.PerUser.Limit, r.config.PerUser.Window
}
