package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	reconcileCron  string
	log            *slog.Logger
}

// NewScheduler builds the periodic-task scheduler. reconcileCron is a
// standard five-field cron expression for the balance reconciliation run.
func NewScheduler(redisOpt asynq.RedisConnOpt, reconcileCron string, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		reconcileCron:  reconcileCron,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewReconcileTask("scheduled")
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.reconcileCron, task); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered balance reconciliation task",
			slog.String("cron", s.reconcileCron))
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
