package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumate/internal/aiservice"
	"resumate/internal/api"
	"resumate/internal/api/middleware"
	"resumate/internal/auth"
	"resumate/internal/config"
	"resumate/internal/curated"
	"resumate/internal/database"
	"resumate/internal/master"
	"resumate/internal/storage"
	"resumate/internal/tracing"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("service", "api"))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.App.Env, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces failed", slog.Any("error", err))
		}
	}()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", slog.String("host", cfg.Database.Host), slog.String("db", cfg.Database.Name))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	documentStore, err := storage.NewDocuments(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}

	issuer, err := auth.LoadIssuer(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("load token keys: %w", err)
	}
	accounts := auth.NewAccounts(db, issuer, redisClient, auth.LoginPolicy{
		AttemptsPerHour: cfg.API.LoginRateLimitPerHour,
		LockThreshold:   cfg.API.LoginLockThreshold,
		LockTTL:         cfg.API.LoginLockTTL,
	})

	masterStore := master.NewStore(db)
	service := curated.NewService(
		aiservice.New(cfg.AIService.URL, cfg.AIService.Timeout),
		masterStore,
		curated.NewStore(db),
		logger,
	)

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Handlers{
		Auth:      api.NewAuthHandler(accounts, cfg.API.CookieDomain),
		Master:    api.NewMasterHandler(masterStore, logger),
		Curated:   api.NewCuratedHandler(service, asynqClient, redisClient, logger, cfg.API.GenerateLimitPerHour),
		Documents: api.NewDocumentHandler(masterStore, documentStore, logger, cfg.Clamd.Addr),
		Ws:        api.NewWsHandler(redisClient, issuer, logger, cfg.API.Origins()),
	}, middleware.AuthMiddleware(issuer))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
