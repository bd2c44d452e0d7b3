package order

import (
	"fmt"
	"time"

	"github.com/smartretail/replenisher/internal/domain/event"
)

// Priority classifies how quickly the supplier should fulfil an order.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityNormal Priority = "normal"
	// PriorityLow is a valid wire value the builder never emits itself;
	// the supplier contract still accepts it.
	PriorityLow Priority = "low"
)

// Request is the outbound order sent to the supplier. Never mutated after
// construction; owned by a single dispatch invocation.
type Request struct {
	ProductID      string   `json:"product_id"`
	ProductName    string   `json:"product_name"`
	Quantity       int      `json:"quantity"`
	SupplierID     string   `json:"supplier_id"`
	Priority       Priority `json:"priority"`
	CorrelationID  string   `json:"correlation_id"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// Confirmation is the supplier's success response.
type Confirmation struct {
	OrderID               string    `json:"order_id"`
	Status                string    `json:"status"`
	EstimatedDeliveryDays int       `json:"estimated_delivery_days"`
	TotalCost             float64   `json:"total_cost"`
	ConfirmationNumber    string    `json:"confirmation_number"`
	CorrelationID         string    `json:"correlation_id"`
	ProcessedAt           time.Time `json:"processed_at"`
	SupplierID            string    `json:"supplier_id"`
}

// Build maps a validated inventory event into an order request. Deterministic
// and total: any valid event produces a request, quantity is copied verbatim,
// and priority is urgent when current stock has fallen to half the threshold
// or below (integer division).
func Build(ev *event.InventoryEvent) Request {
	priority := PriorityNormal
	if ev.CurrentStock <= ev.Threshold/2 {
		priority = PriorityUrgent
	}

	return Request{
		ProductID:      ev.ProductID,
		ProductName:    ev.ProductName,
		Quantity:       ev.SuggestedOrderQuantity,
		SupplierID:     ev.SupplierID,
		Priority:       priority,
		CorrelationID:  ev.CorrelationID,
		IdempotencyKey: fmt.Sprintf("evt:%s", ev.EventID),
	}
}
