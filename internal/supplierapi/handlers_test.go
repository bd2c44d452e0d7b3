package supplierapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartretail/replenisher/internal/correlation"
	"github.com/smartretail/replenisher/internal/domain/order"
)

func newTestRouter() http.Handler {
	return NewRouter(NewHandlers("ACME-SUPPLIER-001", NewMemoryOrderStore()))
}

func postOrder(t *testing.T, router http.Handler, req order.Request, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/order", bytes.NewReader(body))
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpReq)
	return rec
}

func baseOrder() order.Request {
	return order.Request{
		ProductID:      "prod-001",
		ProductName:    "Wireless Headphones",
		Quantity:       20,
		SupplierID:     "supp-001",
		Priority:       order.PriorityNormal,
		CorrelationID:  "corr-1",
		IdempotencyKey: "evt:evt-1",
	}
}

func TestProcessOrderNormalPriority(t *testing.T) {
	rec := postOrder(t, newTestRouter(), baseOrder(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var conf order.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.Equal(t, "confirmed", conf.Status)
	assert.Equal(t, 900.0, conf.TotalCost) // 45.00 * 20
	assert.Equal(t, 3, conf.EstimatedDeliveryDays)
	assert.Equal(t, "corr-1", conf.CorrelationID)
	assert.Equal(t, "ACME-SUPPLIER-001", conf.SupplierID)
	assert.NotEmpty(t, conf.OrderID)
	assert.NotEmpty(t, conf.ConfirmationNumber)
}

func TestProcessOrderUrgentPricing(t *testing.T) {
	req := baseOrder()
	req.Priority = order.PriorityUrgent

	rec := postOrder(t, newTestRouter(), req, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var conf order.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.Equal(t, 1080.0, conf.TotalCost) // 45.00 * 20 * 1.2
	assert.Equal(t, 2, conf.EstimatedDeliveryDays)
}

func TestProcessOrderLowPriorityAccepted(t *testing.T) {
	req := baseOrder()
	req.Priority = order.PriorityLow

	rec := postOrder(t, newTestRouter(), req, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var conf order.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.Equal(t, 855.0, conf.TotalCost) // 45.00 * 20 * 0.95
	assert.Equal(t, 5, conf.EstimatedDeliveryDays)
}

func TestProcessOrderUnknownProductUsesDefaultPricing(t *testing.T) {
	req := baseOrder()
	req.ProductID = "prod-999"

	rec := postOrder(t, newTestRouter(), req, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var conf order.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.Equal(t, 200.0, conf.TotalCost) // 10.00 * 20
	assert.Equal(t, 5, conf.EstimatedDeliveryDays)
}

func TestProcessOrderHeaderCorrelationWins(t *testing.T) {
	rec := postOrder(t, newTestRouter(), baseOrder(), map[string]string{
		correlation.Header: "corr-from-header",
	})

	var conf order.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.Equal(t, "corr-from-header", conf.CorrelationID)
}

func TestProcessOrderRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*order.Request)
		status int
	}{
		{"zero quantity", func(r *order.Request) { r.Quantity = 0 }, http.StatusUnprocessableEntity},
		{"negative quantity", func(r *order.Request) { r.Quantity = -5 }, http.StatusUnprocessableEntity},
		{"missing product", func(r *order.Request) { r.ProductID = "" }, http.StatusUnprocessableEntity},
		{"unknown priority", func(r *order.Request) { r.Priority = "asap" }, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseOrder()
			tt.mutate(&req)
			rec := postOrder(t, newTestRouter(), req, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestProcessOrderIdempotencyKeyDeduplicates(t *testing.T) {
	router := newTestRouter()

	first := postOrder(t, router, baseOrder(), nil)
	require.Equal(t, http.StatusOK, first.Code)
	var firstConf order.Confirmation
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstConf))

	// A replayed request (redelivery after a lost acknowledgment) books no
	// second order.
	second := postOrder(t, router, baseOrder(), nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))

	var secondConf order.Confirmation
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondConf))
	assert.Equal(t, firstConf.OrderID, secondConf.OrderID)
	assert.Equal(t, firstConf.ConfirmationNumber, secondConf.ConfirmationNumber)
}

func TestOrderHistoryEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := postOrder(t, router, baseOrder(), nil)
	var conf order.Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))

	get := httptest.NewRecorder()
	router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/orders/"+conf.OrderID, nil))
	require.Equal(t, http.StatusOK, get.Code)

	var stored StoredOrder
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &stored))
	assert.Equal(t, conf.OrderID, stored.OrderID)
	assert.Equal(t, "evt:evt-1", stored.IdempotencyKey)

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/orders/ORD-NOPE", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)

	list := httptest.NewRecorder()
	router.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/orders?limit=5", nil))
	require.Equal(t, http.StatusOK, list.Code)

	var listing struct {
		Orders     []*StoredOrder `json:"orders"`
		TotalCount int            `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.TotalCount)
	assert.Len(t, listing.Orders, 1)
}

func TestCatalogEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SupplierID string                 `json:"supplier_id"`
		Catalog    map[string]CatalogItem `json:"catalog"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ACME-SUPPLIER-001", resp.SupplierID)
	assert.Contains(t, resp.Catalog, "prod-001")
	assert.Contains(t, resp.Catalog, "default")
}
