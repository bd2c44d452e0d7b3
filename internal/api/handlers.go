package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/smartretail/replenisher/internal/config"
	"github.com/smartretail/replenisher/internal/processor"
)

// LivenessReporter exposes worker heartbeats. Implemented by *processor.Consumer.
type LivenessReporter interface {
	Liveness() []processor.WorkerStatus
}

// LastProcessedReader returns the stored last-processed snapshot, nil when
// nothing has been processed yet. Implemented by the redis status store.
type LastProcessedReader interface {
	LastProcessed(ctx context.Context) ([]byte, error)
}

type Handlers struct {
	cfg      *config.Config
	liveness LivenessReporter
	status   LastProcessedReader // optional
}

func NewHandlers(cfg *config.Config, liveness LivenessReporter, status LastProcessedReader) *Handlers {
	return &Handlers{
		cfg:      cfg,
		liveness: liveness,
		status:   status,
	}
}

type healthConfiguration struct {
	SupplierAPIURL string `json:"supplier_api_url"`
	RetryAttempts  int    `json:"retry_attempts"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type healthResponse struct {
	Service       string                   `json:"service"`
	Status        string                   `json:"status"`
	Timestamp     time.Time                `json:"timestamp"`
	Configuration healthConfiguration      `json:"configuration"`
	Workers       []processor.WorkerStatus `json:"workers"`
	LastProcessed json.RawMessage          `json:"last_processed,omitempty"`
}

// Health reports the current configuration, worker liveness and the last
// processed message. Read-only; no processing state can be mutated here.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Service:   h.cfg.App.Name,
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Configuration: healthConfiguration{
			SupplierAPIURL: h.cfg.Supplier.BaseURL,
			RetryAttempts:  h.cfg.Supplier.MaxAttempts,
			TimeoutSeconds: int(h.cfg.Supplier.TimeoutPerAttempt / time.Second),
		},
		Workers: h.liveness.Liveness(),
	}

	if h.status != nil {
		if snapshot, err := h.status.LastProcessed(r.Context()); err == nil && snapshot != nil {
			resp.LastProcessed = snapshot
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
