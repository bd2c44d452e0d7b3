package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartretail/replenisher/internal/api"
	"github.com/smartretail/replenisher/internal/config"
	kafkainfra "github.com/smartretail/replenisher/internal/infrastructure/kafka"
	redisinfra "github.com/smartretail/replenisher/internal/infrastructure/redis"
	"github.com/smartretail/replenisher/internal/processor"
	"github.com/smartretail/replenisher/internal/supplier"
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

	// Redis is optional: without it the processor runs with no duplicate
	// marker and no last-processed snapshot.
	var (
		status     processor.StatusStore
		lastReader api.LastProcessedReader
	)
	if store, err := redisinfra.NewStatusStore(ctx, redisinfra.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		logger.Warn("redis unavailable, running without status store", "error", err)
	} else {
		defer store.Close()
		status = store
		lastReader = store
	}

	queue := kafkainfra.NewConsumer(kafkainfra.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer queue.Close()

	deadLetter := kafkainfra.NewProducer(kafkainfra.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.DeadLetterTopic,
	})
	defer deadLetter.Close()

	dispatcher := supplier.NewClient(supplier.Config{
		BaseURL:           cfg.Supplier.BaseURL,
		MaxAttempts:       cfg.Supplier.MaxAttempts,
		TimeoutPerAttempt: cfg.Supplier.TimeoutPerAttempt,
		BackoffBase:       cfg.Supplier.BackoffBase,
	})

	proc := processor.New(dispatcher, deadLetter, status)
	consumer := processor.NewConsumer(queue, proc, processor.ConsumerConfig{
		Workers:         cfg.Consumer.Workers,
		MessageTimeout:  cfg.Consumer.MessageTimeout,
		MaxRedeliveries: cfg.Consumer.MaxRedeliveries,
		RedeliveryDelay: cfg.Consumer.RedeliveryDelay,
	})

	// Introspection server: /health and /metrics.
	handlers := api.NewHandlers(cfg, consumer, lastReader)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(handlers),
	}
	go func() {
		logger.Info("Introspection server listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
		}
	}()

	logger.Info("Inventory event processor started",
		"topic", cfg.Kafka.Topic,
		"group_id", cfg.Kafka.GroupID,
		"workers", cfg.Consumer.Workers,
		"supplier_api_url", cfg.Supplier.BaseURL)

	consumer.Run(ctx)

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	logger.Info("Processor exiting")
}
