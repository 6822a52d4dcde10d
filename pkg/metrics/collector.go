// Package metrics exposes Prometheus collectors for the update pipeline and
// the ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of updates handled, labeled by kind and status",
		},
		[]string{"kind", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of commands received, labeled by command and status",
		},
		[]string{"command", "status"},
	)
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of transfer attempts by result",
		},
		[]string{"result"},
	)
	transferredAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transferred_amount_total",
			Help: "Sum of all successfully transferred amounts",
		},
	)
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Total number of money request lifecycle events",
		},
		[]string{"event"},
	)
	balanceRecomputesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_balance_recomputes_total",
			Help: "Total number of full balance recomputations",
		},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordUpdate increments the update counter and records handling duration.
func RecordUpdate(kind, status string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	updatesTotal.WithLabelValues(kind, status).Inc()
	updateDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCommand increments the per-command counter.
func RecordCommand(command, status string) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	commandsTotal.WithLabelValues(command, status).Inc()
}

// RecordTransfer tracks the outcome of one transfer attempt. amount is only
// added for successful transfers.
func RecordTransfer(result string, amount float64) {
	if result == "" {
		result = "unknown"
	}

	transfersTotal.WithLabelValues(result).Inc()
	if result == "ok" && amount > 0 {
		transferredAmount.Add(amount)
	}
}

// RecordRequestEvent tracks money request lifecycle events
// (created, fulfilled, rejected, refused).
func RecordRequestEvent(event string) {
	if event == "" {
		event = "unknown"
	}

	requestsTotal.WithLabelValues(event).Inc()
}

// RecordBalanceRecompute counts one full ledger rescan.
func RecordBalanceRecompute() {
	balanceRecomputesTotal.Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}
