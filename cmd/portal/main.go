package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"wafiPortal/internal/api"
	"wafiPortal/internal/application"
	"wafiPortal/internal/backend"
	"wafiPortal/internal/config"
	"wafiPortal/internal/database"
	"wafiPortal/internal/scan"
	"wafiPortal/internal/session"
	"wafiPortal/internal/storage"
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
	logger.Info("database connection ready",
		slog.String("host", cfg.Database.Host),
		slog.String("db", cfg.Database.Name),
	)

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	scanner := scan.New(cfg.ClamAV.Address, cfg.ClamAV.Timeout)
	if c, ok := scanner.(*scan.Clamd); ok {
		if err := c.Ping(); err != nil {
			logger.Warn("clamd not reachable", slog.Any("error", err))
		}
	} else {
		logger.Warn("cv malware scanning disabled")
	}

	signer, err := session.NewCookieSigner(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		log.Fatalf("init session signer: %v", err)
	}

	backendClient := backend.New(cfg.Backend, backend.WithLogger(logger))
	receipts := database.NewReceiptStore(db)
	issuer := api.NewReceiptIssuer(receipts, asynqClient, logger)

	forms := application.NewService(
		application.NewRedisDraftStore(redisClient, cfg.Portal.DraftTTL),
		storageClient,
		backendClient.Bind(nil),
		application.WithLocker(application.NewRedisLocker(redisClient, cfg.Portal.SubmitLockTTL)),
		application.WithScanner(scanner),
		application.WithSubmitHook(issuer.Issue),
		application.WithLogger(logger),
	)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Deps{
		Config:   cfg,
		Logger:   logger,
		Redis:    redisClient,
		Signer:   signer,
		Forms:    forms,
		Receipts: receipts,
		Objects:  storageClient,
		Backend:  backendClient,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Portal.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("portal listening", slog.String("addr", srv.Addr), slog.String("backend", cfg.Backend.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start portal server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down portal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("portal shutdown failed", slog.Any("error", err))
	}
}
