// Command manage runs operational tasks against the ledger: balance
// reconciliation that rebuilds cached balances from the transaction log, and
// a destructive drop of all ledger data for development environments.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/kwitt-bot/kwitt/internal/jobs"
	"github.com/kwitt-bot/kwitt/internal/ledger"
	"github.com/kwitt-bot/kwitt/pkg/config"
	"github.com/kwitt-bot/kwitt/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	var (
		task    = flag.String("task", "reconcile", "task to run (reconcile, drop)")
		users   = flag.String("users", "", "comma-separated telegram ids; empty means all users")
		enqueue = flag.Bool("enqueue", false, "queue the task for the background worker instead of running it inline")
		force   = flag.Bool("force", false, "required to run the drop task")
	)
	flag.Parse()

	if err := run(*task, *users, *enqueue, *force); err != nil {
		slog.Error("manage task failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(task, users string, enqueue, force bool) error {
	ctx := context.Background()

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if enqueue {
		return enqueueTask(ctx, cfg, task, log)
	}

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	store := ledger.NewPostgresStore(db, log)
	engine := ledger.NewBalanceEngine(store.Users(), store.Transactions(), log)
	settings := config.NewSettings(cfg.Settings)
	service := ledger.NewService(
		store.Users(), store.Transactions(), store.Requests(),
		engine, settings.AllowSendToSelf, log)

	switch task {
	case "reconcile":
		return reconcile(ctx, service, store, engine, users, log)
	case "drop":
		if !force {
			return fmt.Errorf("drop deletes all ledger data; re-run with -force")
		}
		return drop(ctx, db, log)
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

func drop(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	_, err := db.ExecContext(ctx,
		`TRUNCATE requests, transactions, gateway_transaction_details, users RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("drop ledger data: %w", err)
	}

	log.Info("ledger data dropped")
	return nil
}

func enqueueTask(ctx context.Context, cfg *config.Config, task string, log *slog.Logger) error {
	if task != "reconcile" {
		return fmt.Errorf("task %q cannot be queued", task)
	}

	manager := jobs.NewManager(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	defer manager.Close()

	t, err := jobs.NewReconcileTask("manual")
	if err != nil {
		return err
	}

	info, err := manager.Enqueue(ctx, t)
	if err != nil {
		return err
	}

	log.Info("task queued", slog.String("id", info.ID), slog.String("queue", info.Queue))
	return nil
}

func reconcile(
	ctx context.Context,
	service *ledger.Service,
	store *ledger.PostgresStore,
	engine *ledger.BalanceEngine,
	users string,
	log *slog.Logger,
) error {
	if users == "" {
		n, err := service.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		log.Info("reconciled all balances", slog.Int("users", n))
		return nil
	}

	for _, field := range strings.Split(users, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		telegramID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return fmt.Errorf("bad telegram id %q: %w", field, err)
		}

		user, err := store.Users().ByTelegramID(ctx, telegramID)
		if err != nil {
			return fmt.Errorf("load user %d: %w", telegramID, err)
		}

		balance, err := engine.Recompute(ctx, user)
		if err != nil {
			return fmt.Errorf("recompute user %d: %w", telegramID, err)
		}

		log.Info("balance reconciled",
			slog.Int64("telegram_id", telegramID),
			slog.String("balance", balance.StringFixed(2)),
		)
	}

	return nil
}
