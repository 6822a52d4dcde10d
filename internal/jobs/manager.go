package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager is the producer side of the job queue.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type queueManager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a queue producer on the given Redis connection.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &queueManager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *queueManager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		m.log.Error("task enqueue failed", slog.String("type", task.Type()), slog.Any("error", err))
		return nil, err
	}

	m.log.Debug("task enqueued",
		slog.String("type", task.Type()),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

func (m *queueManager) Close() error {
	return m.client.Close()
}
