package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// Queue is the at-least-once transport the consumer pulls from. A message
// redelivers unless committed. Implemented by the kafka infrastructure wrapper.
type Queue interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// WorkerStatus is one worker's liveness record for the health endpoint.
type WorkerStatus struct {
	Worker     int       `json:"worker"`
	LastActive time.Time `json:"last_active"`
}

// ConsumerConfig bounds the worker count and the per-message redelivery policy.
type ConsumerConfig struct {
	Workers         int
	MessageTimeout  time.Duration
	MaxRedeliveries int           // processing rounds per message before parking it
	RedeliveryDelay time.Duration // wait between rounds
}

// Consumer runs a fixed set of workers, each processing one message fully
// before pulling the next. Workers share no mutable state beyond the queue
// and the processor, both safe for concurrent use.
type Consumer struct {
	queue      Queue
	proc       *Processor
	cfg        ConsumerConfig
	heartbeats []atomic.Int64
}

func NewConsumer(queue Queue, proc *Processor, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		queue:      queue,
		proc:       proc,
		cfg:        cfg,
		heartbeats: make([]atomic.Int64, cfg.Workers),
	}
}

// Run blocks until ctx is canceled, then waits for in-flight messages.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.runWorker(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (c *Consumer) runWorker(ctx context.Context, worker int) {
	slog.Info("consumer worker started", "worker", worker)
	for {
		c.heartbeats[worker].Store(time.Now().UnixMilli())

		msg, err := c.queue.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("consumer worker stopping", "worker", worker)
				return
			}
			slog.Error("failed to fetch message", "error", err, "worker", worker)
			time.Sleep(1 * time.Second)
			continue
		}

		c.handle(ctx, worker, msg)
	}
}

// handle runs one message to a committed end state. The group offset only
// moves forward, so committing any later message would also consume every
// uncommitted one before it; redelivery therefore happens in process: the
// same message is re-run until it is acknowledged or parked on the
// dead-letter topic, and only then committed.
func (c *Consumer) handle(ctx context.Context, worker int, msg kafka.Message) {
	for round := 1; ; round++ {
		// The platform ceiling on total processing time per message. The
		// dispatcher stops retrying when this expires.
		procCtx, cancel := context.WithTimeout(ctx, c.cfg.MessageTimeout)
		res := c.proc.Process(procCtx, msg.Value)
		cancel()

		switch res.Outcome {
		case OutcomeAcknowledged, OutcomeDeadLettered:
			c.commit(ctx, worker, msg, res)
			return
		case OutcomeRedeliveryPending:
			if ctx.Err() != nil {
				// Shutdown: leave uncommitted so the group redelivers it.
				return
			}
			if round >= c.cfg.MaxRedeliveries {
				if err := c.proc.ParkExhausted(ctx, msg.Value, res); err != nil {
					slog.Error("failed to park message, leaving it uncommitted",
						"error", err,
						"worker", worker,
						"event_id", res.EventID,
						"correlation_id", res.CorrelationID)
					return
				}
				c.commit(ctx, worker, msg, res)
				return
			}
			slog.Warn("re-running message after delay",
				"worker", worker,
				"round", round,
				"event_id", res.EventID,
				"correlation_id", res.CorrelationID,
				"attempts", res.Attempts)
			timer := time.NewTimer(c.cfg.RedeliveryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}
}

func (c *Consumer) commit(ctx context.Context, worker int, msg kafka.Message, res *Result) {
	if err := c.queue.CommitMessages(ctx, msg); err != nil {
		slog.Error("failed to commit message", "error", err, "worker", worker,
			"correlation_id", res.CorrelationID)
	}
}

// Liveness reports when each worker last pulled a message.
func (c *Consumer) Liveness() []WorkerStatus {
	out := make([]WorkerStatus, c.cfg.Workers)
	for i := range c.heartbeats {
		out[i] = WorkerStatus{
			Worker:     i,
			LastActive: time.UnixMilli(c.heartbeats[i].Load()).UTC(),
		}
	}
	return out
}
