package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"

	"github.com/kwitt-bot/kwitt/internal/bot"
	"github.com/kwitt-bot/kwitt/internal/database"
	"github.com/kwitt-bot/kwitt/internal/dispatch"
	"github.com/kwitt-bot/kwitt/internal/health"
	"github.com/kwitt-bot/kwitt/internal/idempotency"
	"github.com/kwitt-bot/kwitt/internal/jobs"
	jobhandlers "github.com/kwitt-bot/kwitt/internal/jobs/handlers"
	"github.com/kwitt-bot/kwitt/internal/ledger"
	"github.com/kwitt-bot/kwitt/internal/lifecycle"
	"github.com/kwitt-bot/kwitt/internal/middleware"
	"github.com/kwitt-bot/kwitt/internal/ratelimit"
	"github.com/kwitt-bot/kwitt/internal/usercache"
	"github.com/kwitt-bot/kwitt/pkg/config"
	"github.com/kwitt-bot/kwitt/pkg/graceful"
	"github.com/kwitt-bot/kwitt/pkg/logger"
	"github.com/kwitt-bot/kwitt/pkg/metrics"
	redispkg "github.com/kwitt-bot/kwitt/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Info("starting kwitt bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("http_port", cfg.Server.Port),
	)

	settings := config.NewSettings(cfg.Settings)
	config.Watch(v, cfg.AppEnv, settings, log)

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return err
	}

	rdb, err := redispkg.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := ledger.NewPostgresStore(db, log)
	engine := ledger.NewBalanceEngine(store.Users(), store.Transactions(), log)
	service := ledger.NewService(
		store.Users(), store.Transactions(), store.Requests(),
		engine, settings.AllowSendToSelf, log)

	cache := usercache.NewCache(rdb.Client, usercache.DefaultTTL)

	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(rdb.Client, log),
		memoryLimiter,
		log)
	rules := ratelimit.NewRules(cfg.RateLimit)

	idemStore := idempotency.NewRedisStore(rdb.Client, log)

	middlewares := []dispatch.Middleware{
		middleware.NewLogging(log),
		middleware.NewMetrics(),
		middleware.NewRateLimit(limiter, rules, log),
		middleware.NewIdempotency(idemStore, 24*time.Hour, log),
		middleware.NewActor(service, cache, log),
	}

	b, err := bot.New(*cfg, log, service, cache, middlewares)
	if err != nil {
		return err
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram-bot", func(ctx context.Context) error {
		b.Stop()
		return nil
	})

	if cfg.Jobs.Enabled {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeReconcileBalances,
			jobhandlers.NewReconcileHandler(service, log))
		go func() {
			if err := worker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
			}
		}()

		scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.ReconcileCron, log)
		if err := scheduler.RegisterTasks(); err != nil {
			return err
		}
		scheduler.Run()

		shutdown.Register("jobs-scheduler", func(ctx context.Context) error {
			scheduler.Shutdown()
			return nil
		})
		shutdown.Register("jobs-worker", func(ctx context.Context) error {
			worker.Shutdown()
			return nil
		})
	}

	go idempotency.NewCleaner(rdb.Client, log, time.Hour).Run(ctx)
	go ratelimit.NewCleaner(rdb.Client, memoryLimiter, log, time.Hour).Run(ctx)

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	probes := lifecycle.NewProbes(checker, log)

	srv := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           logger.Middleware(httpMux(checker, probes)),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe(ctx)
	}()

	b.Start(ctx)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("kwitt bot stopped")

	return nil
}

func httpMux(checker *health.Checker, probes *lifecycle.Probes) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := probes.Liveness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := probes.Readiness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})

	return mux
}
