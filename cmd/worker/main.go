package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"wafiPortal/internal/config"
	"wafiPortal/internal/database"
	"wafiPortal/internal/metrics"
	"wafiPortal/internal/pdf"
	"wafiPortal/internal/storage"
	"wafiPortal/internal/tasks"
	"wafiPortal/internal/worker"
)

func main() {
	// A local .env is optional; real deployments set the environment.
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      &asynqLogger{logger: logger},
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: &asynqLogger{logger: logger}})
	sweepTask, err := tasks.NewStagingSweepTask(cfg.Worker.StagingMaxAge)
	if err != nil {
		log.Fatalf("build staging sweep task: %v", err)
	}
	if _, err := scheduler.Register(cfg.Worker.SweepSpec, sweepTask); err != nil {
		log.Fatalf("schedule staging sweep: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Shutdown()

	receiptHandler := worker.NewReceiptTaskHandler(
		database.NewReceiptStore(db),
		storageClient,
		pdf.NewGenerator(cfg.Browser.Bin),
		redisClient,
		logger,
	)
	sweepHandler := worker.NewStagingSweepHandler(storageClient, cfg.Worker.StagingMaxAge, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeReceiptGenerate, receiptHandler)
	mux.Handle(tasks.TypeStagingSweep, sweepHandler)

	if cfg.Worker.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				logger.Error("worker metrics endpoint stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.String("sweep_spec", cfg.Worker.SweepSpec),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Debug(sprint(args)) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Info(sprint(args)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Warn(sprint(args)) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Error(sprint(args)) }
func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(sprint(args))
	os.Exit(1)
}

func sprint(args []interface{}) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}
