package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartretail/replenisher/internal/domain/order"
	"github.com/smartretail/replenisher/internal/supplierapi"
)

// OrderHistoryRepository is the postgres-backed supplierapi.OrderStore.
type OrderHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewOrderHistoryRepository(pool *pgxpool.Pool) *OrderHistoryRepository {
	return &OrderHistoryRepository{pool: pool}
}

// EnsureSchema creates the order history table when it does not exist yet.
func (r *OrderHistoryRepository) EnsureSchema(ctx context.Context) error {
	const sql = `
		CREATE TABLE IF NOT EXISTS supplier_orders (
			order_id        TEXT PRIMARY KEY,
			idempotency_key TEXT UNIQUE,
			request         JSONB NOT NULL,
			response        JSONB NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ensure supplier_orders schema: %w", err)
	}
	return nil
}

func (r *OrderHistoryRepository) Save(ctx context.Context, o *supplierapi.StoredOrder) error {
	const sql = `
		INSERT INTO supplier_orders (order_id, idempotency_key, request, response, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING
	`

	reqJSON, err := json.Marshal(o.Request)
	if err != nil {
		return fmt.Errorf("marshal order request: %w", err)
	}
	respJSON, err := json.Marshal(o.Response)
	if err != nil {
		return fmt.Errorf("marshal order response: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, o.OrderID, nullIfEmpty(o.IdempotencyKey), reqJSON, respJSON, o.CreatedAt); err != nil {
		return fmt.Errorf("insert supplier order: %w", err)
	}
	return nil
}

func (r *OrderHistoryRepository) GetByOrderID(ctx context.Context, orderID string) (*supplierapi.StoredOrder, error) {
	const sql = `
		SELECT order_id, COALESCE(idempotency_key, ''), request, response, created_at
		FROM supplier_orders
		WHERE order_id = $1
	`
	return r.queryOne(ctx, sql, orderID)
}

func (r *OrderHistoryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*supplierapi.StoredOrder, error) {
	const sql = `
		SELECT order_id, COALESCE(idempotency_key, ''), request, response, created_at
		FROM supplier_orders
		WHERE idempotency_key = $1
	`
	return r.queryOne(ctx, sql, key)
}

func (r *OrderHistoryRepository) Recent(ctx context.Context, limit int) ([]*supplierapi.StoredOrder, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM supplier_orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count supplier orders: %w", err)
	}

	const sql = `
		SELECT order_id, COALESCE(idempotency_key, ''), request, response, created_at
		FROM supplier_orders
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query recent supplier orders: %w", err)
	}
	defer rows.Close()

	var out []*supplierapi.StoredOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate supplier orders: %w", err)
	}
	return out, total, nil
}

func (r *OrderHistoryRepository) queryOne(ctx context.Context, sql string, arg any) (*supplierapi.StoredOrder, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("query supplier order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("query supplier order: %w", err)
		}
		return nil, nil
	}
	return scanOrder(rows)
}

func scanOrder(rows pgx.Rows) (*supplierapi.StoredOrder, error) {
	var (
		o        supplierapi.StoredOrder
		reqJSON  []byte
		respJSON []byte
	)
	if err := rows.Scan(&o.OrderID, &o.IdempotencyKey, &reqJSON, &respJSON, &o.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan supplier order: %w", err)
	}

	var req order.Request
	if err := json.Unmarshal(reqJSON, &req); err != nil {
		return nil, fmt.Errorf("unmarshal stored request: %w", err)
	}
	var resp order.Confirmation
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal stored response: %w", err)
	}
	o.Request = req
	o.Response = resp
	return &o, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
