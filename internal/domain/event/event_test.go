package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{
	"event_id": "evt-001",
	"correlation_id": "corr-001",
	"event_type": "stock_below_threshold",
	"timestamp": "2025-06-01T12:00:00Z",
	"product_id": "prod-001",
	"product_name": "Wireless Headphones",
	"current_stock": 5,
	"threshold": 10,
	"supplier_id": "supp-001",
	"suggested_order_quantity": 15
}`

func TestValidateOK(t *testing.T) {
	ev, err := Validate([]byte(validBody))
	require.NoError(t, err)

	assert.Equal(t, "evt-001", ev.EventID)
	assert.Equal(t, "corr-001", ev.CorrelationID)
	assert.Equal(t, EventTypeStockBelowThreshold, ev.EventType)
	assert.Equal(t, "prod-001", ev.ProductID)
	assert.Equal(t, 5, ev.CurrentStock)
	assert.Equal(t, 10, ev.Threshold)
	assert.Equal(t, 15, ev.SuggestedOrderQuantity)
}

func TestValidateEmptyCorrelationIDAllowed(t *testing.T) {
	body := strings.Replace(validBody, `"corr-001"`, `""`, 1)
	ev, err := Validate([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, ev.CorrelationID)
}

func TestValidateMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{not json`},
		{"json array", `[1,2,3]`},
		{"empty object", `{}`},
		{"missing event_id", strings.Replace(validBody, `"event_id": "evt-001",`, ``, 1)},
		{"missing correlation_id", strings.Replace(validBody, `"correlation_id": "corr-001",`, ``, 1)},
		{"missing timestamp", strings.Replace(validBody, `"timestamp": "2025-06-01T12:00:00Z",`, ``, 1)},
		{"missing current_stock", strings.Replace(validBody, `"current_stock": 5,`, ``, 1)},
		{"missing quantity", strings.Replace(validBody, `"suggested_order_quantity": 15`, `"suggested_order_quantity": null`, 1)},
		{"stock not an integer", strings.Replace(validBody, `"current_stock": 5`, `"current_stock": "five"`, 1)},
		{"threshold not an integer", strings.Replace(validBody, `"threshold": 10`, `"threshold": 10.5`, 1)},
		{"timestamp not a time", strings.Replace(validBody, `"2025-06-01T12:00:00Z"`, `"yesterday"`, 1)},
		{"negative stock", strings.Replace(validBody, `"current_stock": 5`, `"current_stock": -1`, 1)},
		{"negative threshold", strings.Replace(validBody, `"threshold": 10`, `"threshold": -3`, 1)},
		{"zero quantity", strings.Replace(validBody, `"suggested_order_quantity": 15`, `"suggested_order_quantity": 0`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Validate([]byte(tt.body))
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestValidateUnsupportedType(t *testing.T) {
	body := strings.Replace(validBody, EventTypeStockBelowThreshold, "stock_replenished", 1)
	ev, err := Validate([]byte(body))
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.NotErrorIs(t, err, ErrMalformed)
}

// Event meaningfulness (current_stock < threshold) is the producer's business;
// the validator must accept an event that violates it.
func TestValidateStockAboveThresholdStillValid(t *testing.T) {
	body := strings.Replace(validBody, `"current_stock": 5`, `"current_stock": 50`, 1)
	_, err := Validate([]byte(body))
	assert.NoError(t, err)
}
