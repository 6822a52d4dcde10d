package middleware

import (
	"fmt"
	"log/slog"

	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/internal/ratelimit"
)

// RateLimit enforces the per-user update budget. Limiter errors fail open:
// a broken Redis must not take the bot down with it.
type RateLimit struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimit constructs the rate-limit middleware.
func NewRateLimit(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimit {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimit{limiter: limiter, rules: rules, log: log}
}

func (m *RateLimit) Before(c *dispatch.Context) (dispatch.Outcome, error) {
	if m.limiter == nil || m.rules == nil || !m.rules.Enabled() {
		return dispatch.Continue, nil
	}

	sender := c.Sender()
	if sender == nil {
		return dispatch.Continue, nil
	}

	if m.rules.IsWhitelisted(sender.ID) {
		return dispatch.Continue, nil
	}

	limit, window := m.rules.PerUserLimit()
	key := fmt.Sprintf("user:%d", sender.ID)

	result, err := m.limiter.Check(c.Ctx(), key, limit, window)
	if err != nil {
		m.log.Warn("rate limiter error",
			slog.Int64("telegram_id", sender.ID),
			slog.Any("error", err),
		)
		return dispatch.Continue, nil
	}

	if !result.Allowed {
		m.log.Warn("rate limit exceeded", slog.Int64("telegram_id", sender.ID))
		_ = c.Reply("Rate limit exceeded. Try again later.")
		return dispatch.End, nil
	}

	return dispatch.Continue, nil
}

func (m *RateLimit) After(c *dispatch.Context) error {
	return nil
}
