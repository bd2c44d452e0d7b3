package supplierapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartretail/replenisher/internal/correlation"
	"github.com/smartretail/replenisher/internal/domain/order"
)

var ordersProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "supplier_api_orders_processed_total",
	Help: "The total number of orders confirmed by the supplier simulator",
})

type Handlers struct {
	supplierID string
	catalog    map[string]CatalogItem
	store      OrderStore
}

func NewHandlers(supplierID string, store OrderStore) *Handlers {
	return &Handlers{
		supplierID: supplierID,
		catalog:    DefaultCatalog(),
		store:      store,
	}
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":     "Supplier API",
		"supplier_id": h.supplierID,
		"status":      "operational",
		"timestamp":   time.Now().UTC(),
	})
}

// ProcessOrder confirms an order request. Requests carrying an idempotency
// key the supplier has already fulfilled get the original confirmation back
// instead of a duplicate order.
func (h *Handlers) ProcessOrder(w http.ResponseWriter, r *http.Request) {
	var req order.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.SupplierID == "" {
		writeError(w, http.StatusUnprocessableEntity, "product_id and supplier_id are required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "quantity must be positive")
		return
	}
	switch req.Priority {
	case "":
		req.Priority = order.PriorityNormal
	case order.PriorityUrgent, order.PriorityNormal, order.PriorityLow:
	default:
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown priority %q", req.Priority))
		return
	}

	// Header wins, then the body field, then a fresh id.
	correlationID := r.Header.Get(correlation.Header)
	if correlationID == "" {
		correlationID = req.CorrelationID
	}
	correlationID = correlation.EnsureID(correlationID)

	if req.IdempotencyKey != "" {
		existing, err := h.store.GetByIdempotencyKey(r.Context(), req.IdempotencyKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if existing != nil {
			slog.Info("returning existing confirmation for replayed order",
				"order_id", existing.OrderID,
				"idempotency_key", req.IdempotencyKey,
				"correlation_id", correlationID)
			w.Header().Set("X-Idempotency-Hit", "true")
			writeJSON(w, http.StatusOK, existing.Response)
			return
		}
	}

	item, ok := h.catalog[req.ProductID]
	if !ok {
		item = h.catalog["default"]
	}

	totalCost := item.UnitCost * float64(req.Quantity)
	deliveryDays := item.DeliveryDays
	switch req.Priority {
	case order.PriorityUrgent:
		if deliveryDays > 1 {
			deliveryDays--
		}
		totalCost *= 1.2
	case order.PriorityLow:
		deliveryDays += 2
		totalCost *= 0.95
	}

	orderID := fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
	conf := order.Confirmation{
		OrderID:               orderID,
		Status:                "confirmed",
		EstimatedDeliveryDays: deliveryDays,
		TotalCost:             math.Round(totalCost*100) / 100,
		ConfirmationNumber:    "CONF-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12]),
		CorrelationID:         correlationID,
		ProcessedAt:           time.Now().UTC(),
		SupplierID:            h.supplierID,
	}

	stored := &StoredOrder{
		OrderID:        orderID,
		IdempotencyKey: req.IdempotencyKey,
		Request:        req,
		Response:       conf,
		CreatedAt:      conf.ProcessedAt,
	}
	if err := h.store.Save(r.Context(), stored); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ordersProcessed.Inc()
	slog.Info("order processed", "order_id", orderID, "correlation_id", correlationID)
	writeJSON(w, http.StatusOK, conf)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.store.GetByOrderID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) RecentOrders(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	orders, total, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []*StoredOrder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":      orders,
		"total_count": total,
	})
}

func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"supplier_id": h.supplierID,
		"catalog":     h.catalog,
		"currency":    "CAD",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
