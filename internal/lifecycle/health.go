package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kwitt-bot/kwitt/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from process state and readiness from the health
// checker's dependency sweep.
type Probes struct {
	checker *health.Checker
	log     *slog.Logger
}

// NewProbes creates probes backed by the given dependency checker.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness reports success as long as the process is serving.
func (p *Probes) Liveness(ctx context.Context) error {
	return nil
}

// Readiness fails when any registered dependency check fails.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.checker == nil {
		return nil
	}

	report := p.checker.Check(ctx)
	if report.Healthy {
		return nil
	}

	for name, status := range report.Components {
		if status != "OK" {
			return fmt.Errorf("dependency %s unhealthy: %s", name, status)
		}
	}

	return fmt.Errorf("dependencies unhealthy")
}
