package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartretail/replenisher/internal/config"
	"github.com/smartretail/replenisher/internal/infrastructure/postgres"
	"github.com/smartretail/replenisher/internal/supplierapi"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	supplierID := os.Getenv("SUPPLIER_ID")
	if supplierID == "" {
		supplierID = "ACME-SUPPLIER-001"
	}

	// Postgres keeps the order history durable; without it the simulator
	// falls back to process memory.
	var store supplierapi.OrderStore = supplierapi.NewMemoryOrderStore()
	if pool, err := connectPostgres(ctx, cfg); err != nil {
		logger.Warn("postgres unavailable, using in-memory order history", "error", err)
	} else {
		defer pool.Close()
		repo := postgres.NewOrderHistoryRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare order history schema", "error", err)
			os.Exit(1)
		}
		store = repo
	}

	handlers := supplierapi.NewHandlers(supplierID, store)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: supplierapi.NewRouter(handlers),
	}

	go func() {
		logger.Info("Supplier API listening", "port", cfg.HTTP.Port, "supplier_id", supplierID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down supplier API...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Supplier API exiting")
}

func connectPostgres(ctx context.Context, cfg *config.Config) (pool *pgxpool.Pool, err error) {
	// Retry connection up to 5 times
	for i := 0; i < 5; i++ {
		pool, err = postgres.NewClient(ctx, postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
		})
		if err == nil {
			return pool, nil
		}
		slog.Warn("failed to connect to postgres, retrying", "attempt", i+1, "error", err)
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, err
}
