package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartretail/replenisher/internal/domain/event"
)

var (
	eventsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_inventory_events_emitted_total",
		Help: "The total number of inventory events published to the queue",
	})
	emitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_inventory_emit_errors_total",
		Help: "The total number of failed event publish attempts",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backend_inventory_events_dropped_total",
		Help: "The total number of events dropped because the emit queue was full",
	})
)

// Publisher is the queue side of the emitter. Implemented by the kafka producer.
type Publisher interface {
	SendMessage(ctx context.Context, key, value []byte) error
}

// Emitter publishes stock-below-threshold events through a fixed pool of
// workers with a bounded queue. Publish failures are logged and counted,
// never silently dropped.
type Emitter struct {
	publisher Publisher
	jobs      chan event.InventoryEvent
	wg        sync.WaitGroup
}

func NewEmitter(ctx context.Context, publisher Publisher, workers, queueDepth int) *Emitter {
	e := &Emitter{
		publisher: publisher,
		jobs:      make(chan event.InventoryEvent, queueDepth),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.run(ctx)
		}()
	}
	return e
}

func (e *Emitter) run(ctx context.Context) {
	for {
		select {
		case ev, ok := <-e.jobs:
			if !ok {
				return
			}
			e.publish(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Emitter) publish(ctx context.Context, ev event.InventoryEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		emitErrors.Inc()
		slog.Error("failed to marshal inventory event", "error", err, "event_id", ev.EventID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.publisher.SendMessage(sendCtx, []byte(ev.CorrelationID), value); err != nil {
		emitErrors.Inc()
		slog.Error("failed to emit inventory event",
			"error", err,
			"event_id", ev.EventID,
			"correlation_id", ev.CorrelationID)
		return
	}

	eventsEmitted.Inc()
	slog.Info("inventory event emitted",
		"event_id", ev.EventID,
		"correlation_id", ev.CorrelationID,
		"product_id", ev.ProductID)
}

// Emit enqueues without blocking; returns false when the queue is full.
func (e *Emitter) Emit(ev event.InventoryEvent) bool {
	select {
	case e.jobs <- ev:
		return true
	default:
		eventsDropped.Inc()
		slog.Error("emit queue full, dropping inventory event",
			"event_id", ev.EventID, "correlation_id", ev.CorrelationID)
		return false
	}
}

// QueueLen returns how many events are waiting to be published.
func (e *Emitter) QueueLen() int { return len(e.jobs) }

// QueueCap returns the emit queue capacity.
func (e *Emitter) QueueCap() int { return cap(e.jobs) }

// Drain closes the queue and waits for in-flight publishes.
func (e *Emitter) Drain() {
	close(e.jobs)
	e.wg.Wait()
}

// NewStockEvent builds the event emitted when a product falls below the
// threshold. Suggested quantity restocks to twice the threshold, never less
// than the threshold itself.
func NewStockEvent(p Product, threshold int, correlationID string) event.InventoryEvent {
	suggested := threshold*2 - p.StockQuantity
	if suggested < threshold {
		suggested = threshold
	}
	return event.InventoryEvent{
		EventID:                uuid.New().String(),
		CorrelationID:          correlationID,
		EventType:              event.EventTypeStockBelowThreshold,
		Timestamp:              time.Now().UTC(),
		ProductID:              p.ID,
		ProductName:            p.Name,
		CurrentStock:           p.StockQuantity,
		Threshold:              threshold,
		SupplierID:             p.SupplierID,
		SuggestedOrderQuantity: suggested,
	}
}
