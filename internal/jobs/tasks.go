package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeReconcileBalances rebuilds every cached balance from the
	// transaction log.
	TaskTypeReconcileBalances = "ledger:reconcile"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// ReconcilePayload carries the parameters of a balance reconciliation run.
type ReconcilePayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason"`
}

// NewReconcileTask builds a balance reconciliation task.
func NewReconcileTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{
		RequestedAt: time.Now().UTC(),
		Reason:      reason,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeReconcileBalances, payload, asynq.Queue(QueueLow)), nil
}
