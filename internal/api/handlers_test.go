package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartretail/replenisher/internal/config"
	"github.com/smartretail/replenisher/internal/processor"
)

type staticLiveness struct{}

func (staticLiveness) Liveness() []processor.WorkerStatus {
	return []processor.WorkerStatus{{Worker: 0, LastActive: time.Now().UTC()}}
}

type staticStatus struct {
	snapshot []byte
}

func (s staticStatus) LastProcessed(context.Context) ([]byte, error) {
	return s.snapshot, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.App{Name: "inventory-event-processor"},
		Supplier: config.Supplier{
			BaseURL:           "http://supplier:8001",
			MaxAttempts:       3,
			TimeoutPerAttempt: 30 * time.Second,
			BackoffBase:       time.Second,
		},
	}
}

func TestHealthExposesConfiguration(t *testing.T) {
	router := NewRouter(NewHandlers(testConfig(), staticLiveness{}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Service       string `json:"service"`
		Status        string `json:"status"`
		Configuration struct {
			SupplierAPIURL string `json:"supplier_api_url"`
			RetryAttempts  int    `json:"retry_attempts"`
			TimeoutSeconds int    `json:"timeout_seconds"`
		} `json:"configuration"`
		Workers []processor.WorkerStatus `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "inventory-event-processor", resp.Service)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "http://supplier:8001", resp.Configuration.SupplierAPIURL)
	assert.Equal(t, 3, resp.Configuration.RetryAttempts)
	assert.Equal(t, 30, resp.Configuration.TimeoutSeconds)
	assert.Len(t, resp.Workers, 1)
}

func TestHealthIncludesLastProcessedWhenAvailable(t *testing.T) {
	snapshot := []byte(`{"outcome":"acknowledged","correlation_id":"corr-1","attempts":1}`)
	router := NewRouter(NewHandlers(testConfig(), staticLiveness{}, staticStatus{snapshot: snapshot}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp struct {
		LastProcessed json.RawMessage `json:"last_processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, string(snapshot), string(resp.LastProcessed))
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(NewHandlers(testConfig(), staticLiveness{}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
