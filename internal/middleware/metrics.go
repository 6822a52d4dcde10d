package middleware

import (
	"time"

	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/pkg/metrics"
)

const metricsStartKey = "metrics.started_at"

// Metrics counts processed updates per kind and observes handling latency.
// The outcome status is not visible from the after hook, so updates are
// recorded as processed; failures are counted separately by the error
// handler.
type Metrics struct{}

// NewMetrics constructs the metrics middleware.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Before(c *dispatch.Context) (dispatch.Outcome, error) {
	c.Set(metricsStartKey, time.Now())
	return dispatch.Continue, nil
}

func (m *Metrics) After(c *dispatch.Context) error {
	started, ok := c.Get(metricsStartKey)
	if !ok {
		return nil
	}

	metrics.RecordUpdate(c.Kind().String(), "processed", time.Since(started.(time.Time)))

	return nil
}
