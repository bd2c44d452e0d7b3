package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventTypeStockBelowThreshold is the only event type the processor handles.
const EventTypeStockBelowThreshold = "stock_below_threshold"

var (
	// ErrMalformed marks payloads that can never become valid: unparseable
	// bodies, missing required fields, wrong field types. Permanent.
	ErrMalformed = errors.New("malformed inventory event")
	// ErrUnsupportedType marks events whose event_type is not handled.
	// Permanent, same handling as ErrMalformed at the queue layer.
	ErrUnsupportedType = errors.New("unsupported event type")
)

// InventoryEvent is the inbound contract consumed from the queue.
// Immutable once parsed; owned by a single message-processing attempt.
type InventoryEvent struct {
	EventID                string    `json:"event_id"`
	CorrelationID          string    `json:"correlation_id"`
	EventType              string    `json:"event_type"`
	Timestamp              time.Time `json:"timestamp"`
	ProductID              string    `json:"product_id"`
	ProductName            string    `json:"product_name"`
	CurrentStock           int       `json:"current_stock"`
	Threshold              int       `json:"threshold"`
	SupplierID             string    `json:"supplier_id"`
	SuggestedOrderQuantity int       `json:"suggested_order_quantity"`
}

// wireEvent uses pointers so that absent fields are distinguishable from
// zero values after unmarshalling.
type wireEvent struct {
	EventID                *string    `json:"event_id"`
	CorrelationID          *string    `json:"correlation_id"`
	EventType              *string    `json:"event_type"`
	Timestamp              *time.Time `json:"timestamp"`
	ProductID              *string    `json:"product_id"`
	ProductName            *string    `json:"product_name"`
	CurrentStock           *int       `json:"current_stock"`
	Threshold              *int       `json:"threshold"`
	SupplierID             *string    `json:"supplier_id"`
	SuggestedOrderQuantity *int       `json:"suggested_order_quantity"`
}

// Validate parses raw as a JSON InventoryEvent and checks the contract.
// Pure function; errors wrap ErrMalformed or ErrUnsupportedType so the
// caller can treat both as poison without inspecting the message text.
func Validate(raw []byte) (*InventoryEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for field, ptr := range map[string]*string{
		"event_id":     w.EventID,
		"event_type":   w.EventType,
		"product_id":   w.ProductID,
		"product_name": w.ProductName,
		"supplier_id":  w.SupplierID,
	} {
		if ptr == nil || *ptr == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, field)
		}
	}
	// correlation_id must be present in the payload; an empty value is
	// tolerated and replaced further down the pipeline.
	if w.CorrelationID == nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, "correlation_id")
	}
	if w.Timestamp == nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, "timestamp")
	}
	for field, ptr := range map[string]*int{
		"current_stock":            w.CurrentStock,
		"threshold":                w.Threshold,
		"suggested_order_quantity": w.SuggestedOrderQuantity,
	} {
		if ptr == nil {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, field)
		}
	}
	if *w.CurrentStock < 0 {
		return nil, fmt.Errorf("%w: current_stock must be >= 0, got %d", ErrMalformed, *w.CurrentStock)
	}
	if *w.Threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must be >= 0, got %d", ErrMalformed, *w.Threshold)
	}
	if *w.SuggestedOrderQuantity <= 0 {
		return nil, fmt.Errorf("%w: suggested_order_quantity must be > 0, got %d", ErrMalformed, *w.SuggestedOrderQuantity)
	}
	if *w.EventType != EventTypeStockBelowThreshold {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, *w.EventType)
	}

	return &InventoryEvent{
		EventID:                *w.EventID,
		CorrelationID:          *w.CorrelationID,
		EventType:              *w.EventType,
		Timestamp:              *w.Timestamp,
		ProductID:              *w.ProductID,
		ProductName:            *w.ProductName,
		CurrentStock:           *w.CurrentStock,
		Threshold:              *w.Threshold,
		SupplierID:             *w.SupplierID,
		SuggestedOrderQuantity: *w.SuggestedOrderQuantity,
	}, nil
}
