package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartretail/replenisher/internal/correlation"
	"github.com/smartretail/replenisher/internal/domain/order"
)

var (
	dispatchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_dispatch_attempts_total",
		Help: "The total number of outbound order call attempts",
	})
	dispatchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_dispatch_retries_total",
		Help: "The total number of backoff waits before a retry",
	})
	dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplier_dispatch_failures_total",
		Help: "The total number of terminal dispatch failures by kind",
	}, []string{"kind"})
	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "supplier_dispatch_duration_seconds",
		Help:    "Time taken per outbound call attempt",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30},
	})
)

// FailureKind classifies a terminal dispatch failure.
type FailureKind string

const (
	// KindExhausted means every allowed attempt failed with a transient error.
	KindExhausted FailureKind = "dispatch_exhausted"
	// KindRejected means the supplier refused the request as invalid; retrying
	// cannot help, so the attempt budget is not burned.
	KindRejected FailureKind = "rejected_downstream"
	// KindCanceled means the processing deadline or shutdown interrupted the
	// dispatch before an answer was obtained.
	KindCanceled FailureKind = "canceled"
)

// DispatchError is the terminal failure outcome of a dispatch. It always
// carries the attempt count and correlation id so a stuck event can be traced
// through logs without re-deriving state.
type DispatchError struct {
	Kind          FailureKind
	Attempts      int
	CorrelationID string
	Err           error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("supplier dispatch failed (%s) after %d attempt(s), correlation_id=%s: %v",
		e.Kind, e.Attempts, e.CorrelationID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Config bounds the retry behavior of a Client.
type Config struct {
	BaseURL           string
	MaxAttempts       int // >= 1; 3 means at most 3 calls and 2 waits
	TimeoutPerAttempt time.Duration
	BackoffBase       time.Duration // doubles per attempt: base * 2^(attempt-1)
}

// Client performs the outbound order call with bounded retries and
// exponential backoff. Safe for concurrent use across consumer workers; the
// underlying http.Client connection pool is shared.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		// Per-attempt deadlines come from the request context, so the
		// client itself carries no timeout.
		httpClient: &http.Client{},
	}
}

// CreateOrder posts req to the supplier's order endpoint. On success the
// confirmation is returned along with the number of calls it took, after at
// most MaxAttempts calls; on terminal failure the error is a *DispatchError.
// Blocks only during the network call and the backoff wait, both of which
// honor ctx cancellation.
func (c *Client) CreateOrder(ctx context.Context, req order.Request) (*order.Confirmation, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, &DispatchError{Kind: KindRejected, Attempts: 0, CorrelationID: req.CorrelationID, Err: err}
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/order"

	var lastErr error
	for attempt := 1; ; attempt++ {
		dispatchAttempts.Inc()
		started := time.Now()
		conf, retryable, err := c.attempt(ctx, url, body, req.CorrelationID)
		dispatchDuration.Observe(time.Since(started).Seconds())

		if err == nil {
			slog.Info("supplier order confirmed",
				"order_id", conf.OrderID,
				"correlation_id", req.CorrelationID,
				"attempt", attempt)
			return conf, attempt, nil
		}

		if ctx.Err() != nil {
			dispatchFailures.WithLabelValues(string(KindCanceled)).Inc()
			return nil, attempt, &DispatchError{Kind: KindCanceled, Attempts: attempt, CorrelationID: req.CorrelationID, Err: ctx.Err()}
		}
		if !retryable {
			dispatchFailures.WithLabelValues(string(KindRejected)).Inc()
			return nil, attempt, &DispatchError{Kind: KindRejected, Attempts: attempt, CorrelationID: req.CorrelationID, Err: err}
		}

		lastErr = err
		if attempt >= c.cfg.MaxAttempts {
			dispatchFailures.WithLabelValues(string(KindExhausted)).Inc()
			return nil, attempt, &DispatchError{Kind: KindExhausted, Attempts: attempt, CorrelationID: req.CorrelationID, Err: lastErr}
		}

		backoff := time.Duration(1<<(attempt-1)) * c.cfg.BackoffBase
		slog.Warn("supplier call failed, backing off",
			"error", err,
			"correlation_id", req.CorrelationID,
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"backoff", backoff)
		dispatchRetries.Inc()

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			dispatchFailures.WithLabelValues(string(KindCanceled)).Inc()
			return nil, attempt, &DispatchError{Kind: KindCanceled, Attempts: attempt, CorrelationID: req.CorrelationID, Err: ctx.Err()}
		}
	}
}

// attempt performs one outbound call. The bool reports whether the failure is
// retryable: transport errors, timeouts and 5xx are; 400/422 rejections are not.
func (c *Client) attempt(ctx context.Context, url string, body []byte, correlationID string) (*order.Confirmation, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.TimeoutPerAttempt)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build supplier request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(correlation.Header, correlationID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("supplier call: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var conf order.Confirmation
		if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
			return nil, true, fmt.Errorf("decode supplier response: %w", err)
		}
		return &conf, false, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, fmt.Errorf("supplier rejected order: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("supplier returned status %d", resp.StatusCode)
	}
}
