package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rma-advocacia/client-portal/internal/access"
	"github.com/rma-advocacia/client-portal/internal/api"
	"github.com/rma-advocacia/client-portal/internal/catalog"
	"github.com/rma-advocacia/client-portal/internal/cleanup"
	"github.com/rma-advocacia/client-portal/internal/config"
	"github.com/rma-advocacia/client-portal/internal/health"
	"github.com/rma-advocacia/client-portal/internal/portal"
	"github.com/rma-advocacia/client-portal/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting client-portal",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"gate_policy", cfg.Session.GatePolicy,
	)

	// Load catalog; an invalid offering aborts startup
	offerings := catalog.NewLoader()
	if err := offerings.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Error("failed to load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}

	clients := access.NewDirectory()
	if err := clients.LoadFromFile(cfg.Catalog.ClientsFile, offerings); err != nil {
		slog.Error("failed to load client directory", "file", cfg.Catalog.ClientsFile, "error", err)
		os.Exit(1)
	}

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	repo, err := openStore(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}

	manager := portal.NewManager(offerings, repo, cfg.Session.GatePolicy)

	// Readiness checks
	checks := health.NewRegistry(2 * time.Second)
	checks.Register(health.NewCheckFunc("store", manager.Ping))
	checks.Register(health.NewCheckFunc("catalog", func(ctx context.Context) error {
		if offerings.Len() == 0 {
			return catalog.ErrEmptyCatalog
		}
		return nil
	}))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start idle session sweeper
	sweeper := cleanup.NewSweeper(manager, cfg.Session.SweepInterval, cfg.Session.TTL)
	sweeperDone := sweeper.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, manager, offerings, clients, checks)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()
	<-sweeperDone

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := repo.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("client-portal stopped")
}

// openStore builds the configured session store, migrating Postgres first
func openStore(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		repo, err := storage.NewRedisRepository(ctx, storage.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Session.TTL,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("redis connected successfully", "address", cfg.Redis.Address)
		return repo, nil

	case config.BackendPostgres:
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
		if err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{DSN: cfg.Database.DSN})
		if err != nil {
			return nil, err
		}
		slog.Info("database connected successfully")
		return repo, nil

	default:
		return storage.NewMemoryRepository(), nil
	}
}
