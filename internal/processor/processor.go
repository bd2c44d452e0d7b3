// Package processor turns raw queue messages into confirmed supplier orders:
// validate, build the order request, resolve the correlation id, dispatch
// with bounded retries, and report whether the message may be acknowledged.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartretail/replenisher/internal/correlation"
	"github.com/smartretail/replenisher/internal/domain/event"
	"github.com/smartretail/replenisher/internal/domain/order"
	"github.com/smartretail/replenisher/internal/supplier"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_events_processed_total",
		Help: "The total number of processed messages by outcome",
	}, []string{"outcome"})
	poisonMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processor_poison_messages_total",
		Help: "The total number of messages that failed validation",
	})
	exhaustedParked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "processor_exhausted_parked_total",
		Help: "The total number of messages parked on the dead-letter topic after redelivery gave up",
	})
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "processor_processing_duration_seconds",
		Help:    "Time taken to process one message",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 30},
	})
)

// Outcome is the terminal state of one message-processing attempt.
type Outcome string

const (
	// OutcomeAcknowledged: the order was confirmed (or the event had already
	// completed earlier); the message must be committed.
	OutcomeAcknowledged Outcome = "acknowledged"
	// OutcomeDeadLettered: the message is poison; it was parked on the
	// dead-letter topic and must be committed so it never redelivers.
	OutcomeDeadLettered Outcome = "dead_lettered"
	// OutcomeRedeliveryPending: this processing round failed terminally; the
	// message must not be committed yet. The consumer re-runs it and parks it
	// on the dead-letter topic once its redelivery rounds are exhausted.
	OutcomeRedeliveryPending Outcome = "redelivery_pending"
)

// Result reports what happened to one message. Every result carries the
// correlation id and attempt count so operators can trace a stuck event.
type Result struct {
	Outcome       Outcome             `json:"outcome"`
	EventID       string              `json:"event_id,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	ProductID     string              `json:"product_id,omitempty"`
	Attempts      int                 `json:"attempts"`
	Confirmation  *order.Confirmation `json:"confirmation,omitempty"`
	Error         string              `json:"error,omitempty"`
	ProcessedAt   time.Time           `json:"processed_at"`
}

// Dispatcher performs the outbound order call and reports how many calls it
// took. Implemented by *supplier.Client.
type Dispatcher interface {
	CreateOrder(ctx context.Context, req order.Request) (*order.Confirmation, int, error)
}

// FailureKindHeader marks why a parked message ended up on the dead-letter
// topic, so poison and exhausted dispatches can be told apart downstream.
const (
	FailureKindHeader    = "failure_kind"
	FailureKindPoison    = "validation_failed"
	FailureKindExhausted = "dispatch_exhausted"
)

// DeadLetterer parks unprocessable messages on a side channel.
type DeadLetterer interface {
	SendMessageWithHeaders(ctx context.Context, key, value []byte, headers map[string]string) error
}

// StatusStore keeps the last-processed snapshot and the advisory duplicate
// marker. Implemented by the redis status store; both hooks are best-effort.
type StatusStore interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)
	SetLastProcessed(ctx context.Context, snapshot []byte) error
}

// Processor holds no cross-message state; every field is safe for concurrent
// use, so one Processor serves all consumer workers.
type Processor struct {
	dispatcher Dispatcher
	deadLetter DeadLetterer // optional
	status     StatusStore  // optional
}

func New(dispatcher Dispatcher, deadLetter DeadLetterer, status StatusStore) *Processor {
	return &Processor{
		dispatcher: dispatcher,
		deadLetter: deadLetter,
		status:     status,
	}
}

// Process runs one message through the pipeline. Never returns an error:
// every failure mode is folded into the Result's outcome.
func (p *Processor) Process(ctx context.Context, raw []byte) *Result {
	started := time.Now()
	res := p.process(ctx, raw)
	res.ProcessedAt = time.Now().UTC()

	processingDuration.Observe(time.Since(started).Seconds())
	eventsProcessed.WithLabelValues(string(res.Outcome)).Inc()
	p.recordSnapshot(ctx, res)
	return res
}

func (p *Processor) process(ctx context.Context, raw []byte) *Result {
	ev, err := event.Validate(raw)
	if err != nil {
		// Poison: a malformed message will never become valid on redelivery.
		poisonMessages.Inc()
		slog.Error("rejecting poison message", "error", err)
		if p.deadLetter == nil {
			// Without a dead-letter topic the only terminal option is to drop it.
			slog.Warn("no dead-letter topic configured, dropping poison message")
			return &Result{Outcome: OutcomeDeadLettered, Error: err.Error()}
		}
		if parkErr := p.park(ctx, raw, FailureKindPoison); parkErr != nil {
			// Committing now would lose the message from both topics.
			slog.Error("failed to dead-letter poison message", "error", parkErr)
			return &Result{Outcome: OutcomeRedeliveryPending, Error: err.Error()}
		}
		return &Result{Outcome: OutcomeDeadLettered, Error: err.Error()}
	}

	correlationID := correlation.EnsureID(ev.CorrelationID)
	ctx = correlation.WithID(ctx, correlationID)

	if p.status != nil {
		if done, err := p.status.AlreadyProcessed(ctx, ev.EventID); err == nil && done {
			slog.Info("skipping already-confirmed event",
				"event_id", ev.EventID, "correlation_id", correlationID)
			return &Result{
				Outcome:       OutcomeAcknowledged,
				EventID:       ev.EventID,
				CorrelationID: correlationID,
				ProductID:     ev.ProductID,
			}
		}
	}

	req := order.Build(ev)
	req.CorrelationID = correlationID

	slog.Info("dispatching supplier order",
		"event_id", ev.EventID,
		"correlation_id", correlationID,
		"product_id", req.ProductID,
		"quantity", req.Quantity,
		"priority", req.Priority)

	conf, attempts, err := p.dispatcher.CreateOrder(ctx, req)
	if err != nil {
		var de *supplier.DispatchError
		if errors.As(err, &de) {
			attempts = de.Attempts
		}
		slog.Error("supplier dispatch failed",
			"error", err,
			"event_id", ev.EventID,
			"correlation_id", correlationID,
			"attempts", attempts)
		return &Result{
			Outcome:       OutcomeRedeliveryPending,
			EventID:       ev.EventID,
			CorrelationID: correlationID,
			ProductID:     ev.ProductID,
			Attempts:      attempts,
			Error:         err.Error(),
		}
	}

	if p.status != nil {
		if first, err := p.status.MarkProcessed(ctx, ev.EventID); err != nil {
			slog.Warn("failed to record completion marker", "error", err, "event_id", ev.EventID)
		} else if !first {
			// Two workers raced past AlreadyProcessed; the supplier may have
			// received the order twice and deduplicates on the idempotency key.
			slog.Info("completion marker already present",
				"event_id", ev.EventID, "correlation_id", correlationID)
		}
	}

	slog.Info("event processed",
		"event_id", ev.EventID,
		"correlation_id", correlationID,
		"order_id", conf.OrderID)

	return &Result{
		Outcome:       OutcomeAcknowledged,
		EventID:       ev.EventID,
		CorrelationID: correlationID,
		ProductID:     ev.ProductID,
		Attempts:      attempts,
		Confirmation:  conf,
	}
}

// ParkExhausted publishes a message whose dispatch kept failing across
// redelivery rounds, so the consumer can commit it without losing it.
func (p *Processor) ParkExhausted(ctx context.Context, raw []byte, res *Result) error {
	if p.deadLetter == nil {
		return errors.New("no dead-letter topic configured")
	}
	if err := p.park(ctx, raw, FailureKindExhausted); err != nil {
		return err
	}
	exhaustedParked.Inc()
	slog.Error("parked message after exhausting redelivery",
		"event_id", res.EventID,
		"correlation_id", res.CorrelationID,
		"attempts", res.Attempts)
	return nil
}

func (p *Processor) park(ctx context.Context, raw []byte, kind string) error {
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.deadLetter.SendMessageWithHeaders(sendCtx, nil, raw,
		map[string]string{FailureKindHeader: kind})
}

func (p *Processor) recordSnapshot(ctx context.Context, res *Result) {
	if p.status == nil {
		return
	}
	snapshot, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := p.status.SetLastProcessed(ctx, snapshot); err != nil {
		slog.Warn("failed to store last-processed snapshot", "error", err)
	}
}
