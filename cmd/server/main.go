// Package main is the entrypoint for the textindex gateway server.
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

	"github.com/kiranshivaraju/textindex/internal/api"
	"github.com/kiranshivaraju/textindex/internal/api/handler"
	mw "github.com/kiranshivaraju/textindex/internal/api/middleware"
	"github.com/kiranshivaraju/textindex/internal/api/response"
	"github.com/kiranshivaraju/textindex/internal/cache"
	"github.com/kiranshivaraju/textindex/internal/config"
	"github.com/kiranshivaraju/textindex/internal/indexing"
	"github.com/kiranshivaraju/textindex/internal/store"
	"github.com/kiranshivaraju/textindex/pkg/textindex"
)

const (
	shutdownTimeout = 30 * time.Second
	defaultEnvFile  = ".env"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	envFile := os.Getenv("TEXTINDEX_ENV_FILE")
	if envFile == "" {
		envFile = defaultEnvFile
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "iod_base_url", cfg.IOD.BaseURL, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and indexing service
	pgStore := store.NewPostgresStore(pool)
	client := textindex.NewHTTPClient(cfg.IOD.BaseURL, cfg.IOD.APIKey, cfg.IOD.Timeout)
	svc := indexing.NewService(client, pgStore, redisCache, cfg.Gateway.StatusCacheTTL, cfg.Gateway.ResultCacheTTL)

	if cfg.Gateway.BootstrapKey != "" {
		if err := ensureBootstrapKey(ctx, pgStore, cfg.Gateway.BootstrapKey); err != nil {
			return fmt.Errorf("bootstrap admin key: %w", err)
		}
	}

	// 6. Build router with dependencies
	router := api.NewRouter(newDependencies(cfg, pgStore, redisCache, svc))

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       2 * time.Minute,

		// Result polls are held upstream for up to the client timeout.
		WriteTimeout: cfg.IOD.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newDependencies(cfg *config.Config, s store.Store, c cache.Cache, svc *indexing.Service) api.Dependencies {
	return api.Dependencies{
		Auth:      mw.NewAuth(s),
		RateLimit: mw.NewRateLimit(c, cfg.Gateway.RateLimitPerMinute),

		HealthHandler: healthHandler(s, c),

		SubmitDocuments: handler.NewSubmitDocumentsHandler(svc),
		SubmitFile:      handler.NewSubmitFileHandler(svc, cfg.Gateway.MaxUploadBytes),
		SubmitReference: handler.NewSubmitReferenceHandler(svc),
		SubmitURL:       handler.NewSubmitURLHandler(svc),

		ListJobs:  handler.NewListJobsHandler(svc),
		JobStatus: handler.NewJobStatusHandler(svc),
		JobResult: handler.NewJobResultHandler(svc),

		CreateKeyHandler: handler.NewCreateKeyHandler(s),
		ListKeysHandler:  handler.NewListKeysHandler(s),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(s),
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
