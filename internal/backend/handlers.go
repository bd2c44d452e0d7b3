package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	store     ProductStore
	emitter   *Emitter
	threshold int
}

func NewHandlers(store ProductStore, emitter *Emitter, threshold int) *Handlers {
	return &Handlers{
		store:     store,
		emitter:   emitter,
		threshold: threshold,
	}
}

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/", h.Root)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Put("/products/{id}/stock", h.UpdateStock)
	r.Post("/products/{id}/simulate-sale", h.SimulateSale)
	r.Get("/queue/status", h.QueueStatus)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "SmartRetail Backend",
		"status":    "running",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateStock replaces a product's stock level and emits a replenishment
// event when the new level is below the threshold.
func (h *Handlers) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockQuantity *int `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StockQuantity == nil || *req.StockQuantity < 0 {
		writeError(w, http.StatusBadRequest, "stock_quantity must be a non-negative integer")
		return
	}

	p, err := h.store.SetStock(r.Context(), chi.URLParam(r, "id"), *req.StockQuantity)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if p.StockQuantity < h.threshold {
		h.emitter.Emit(NewStockEvent(*p, h.threshold, uuid.New().String()))
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) SimulateSale(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
			return
		}
		quantity = n
	}

	p, err := h.store.DeductStock(r.Context(), chi.URLParam(r, "id"), quantity)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	correlationID := uuid.New().String()
	belowThreshold := p.StockQuantity < h.threshold
	if belowThreshold {
		h.emitter.Emit(NewStockEvent(*p, h.threshold, correlationID))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Sale completed",
		"product_id":      p.ID,
		"quantity_sold":   quantity,
		"remaining_stock": p.StockQuantity,
		"below_threshold": belowThreshold,
		"correlation_id":  correlationID,
	})
}

func (h *Handlers) QueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queued":   h.emitter.QueueLen(),
		"capacity": h.emitter.QueueCap(),
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, "Insufficient stock")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
