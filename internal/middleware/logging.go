package middleware

import (
	"log/slog"
	"time"

	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/pkg/logger"
)

const startedAtKey = "logging.started_at"

// Logging records one line when an update enters the chain and one when it
// leaves, with the wall time spent in between. The start time travels through
// the context scratch space so the after hook sees it even when a later
// before hook ends the update early.
type Logging struct {
	log *slog.Logger
}

// NewLogging constructs the logging middleware.
func NewLogging(log *slog.Logger) *Logging {
	if log == nil {
		log = slog.Default()
	}

	return &Logging{log: log}
}

func (m *Logging) Before(c *dispatch.Context) (dispatch.Outcome, error) {
	c.Set(startedAtKey, time.Now())

	attrs := []any{
		slog.String("kind", c.Kind().String()),
		slog.String("correlation_id", logger.CorrelationIDFromContext(c.Ctx())),
	}
	if sender := c.Sender(); sender != nil {
		attrs = append(attrs, slog.Int64("telegram_id", sender.ID))
	}
	if cmd := c.Command(); cmd != nil {
		attrs = append(attrs, slog.String("command", cmd.Name))
	}

	m.log.Info("update received", attrs...)

	return dispatch.Continue, nil
}

func (m *Logging) After(c *dispatch.Context) error {
	started, ok := c.Get(startedAtKey)
	if !ok {
		return nil
	}

	m.log.Info("update handled",
		slog.String("kind", c.Kind().String()),
		slog.String("correlation_id", logger.CorrelationIDFromContext(c.Ctx())),
		slog.Duration("duration", time.Since(started.(time.Time))),
	)

	return nil
}
