package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartretail/replenisher/internal/backend"
	"github.com/smartretail/replenisher/internal/config"
	"github.com/smartretail/replenisher/internal/infrastructure/kafka"
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

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer producer.Close()

	// Workers get their own context: on shutdown Drain closes the queue and
	// waits for in-flight publishes instead of abandoning them.
	emitter := backend.NewEmitter(context.Background(), producer,
		cfg.Backend.EmitWorkers, cfg.Backend.EmitQueueDepth)

	store := backend.NewMemoryProductStore()
	handlers := backend.NewHandlers(store, emitter, cfg.Backend.StockThreshold)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: backend.NewRouter(handlers),
	}

	go func() {
		logger.Info("Inventory backend listening",
			"port", cfg.HTTP.Port,
			"topic", producer.Topic(),
			"stock_threshold", cfg.Backend.StockThreshold)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down inventory backend...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Flush queued events before exiting so simulated sales are not lost.
	emitter.Drain()
	logger.Info("Inventory backend exiting")
}
