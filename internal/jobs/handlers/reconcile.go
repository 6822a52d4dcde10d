package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	apperrors "github.com/kwitt-bot/kwitt/internal/errors"
	"github.com/kwitt-bot/kwitt/internal/jobs"
	"github.com/kwitt-bot/kwitt/internal/ledger"
)

// ReconcileHandler rebuilds every user's cached balance from the transaction
// log. Cached balances are projections, so a run is always safe to repeat;
// transient store failures are retried with backoff before asynq's own retry
// kicks in.
type ReconcileHandler struct {
	service *ledger.Service
	log     *slog.Logger
}

func NewReconcileHandler(service *ledger.Service, log *slog.Logger) *ReconcileHandler {
	if log == nil {
		log = slog.Default()
	}

	return &ReconcileHandler{service: service, log: log}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "reconcile: failed to decode payload",
			slog.String("task_type", t.Type()), slog.Any("error", err))
		return err
	}

	h.log.InfoContext(ctx, "reconciling balances",
		slog.String("task_type", t.Type()),
		slog.String("reason", payload.Reason),
	)

	var reconciled int
	err := apperrors.WithRetry(ctx, func() error {
		n, err := h.service.ReconcileAll(ctx)
		reconciled = n
		return err
	})
	if err != nil {
		h.log.ErrorContext(ctx, "reconcile run failed",
			slog.Int("reconciled", reconciled), slog.Any("error", err))
		return err
	}

	h.log.InfoContext(ctx, "reconcile run finished", slog.Int("users", reconciled))

	return nil
}
