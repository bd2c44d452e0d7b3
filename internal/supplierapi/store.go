package supplierapi

import (
	"context"
	"sync"
	"time"

	"github.com/smartretail/replenisher/internal/domain/order"
)

// StoredOrder is one processed order kept in the supplier's history.
type StoredOrder struct {
	OrderID        string             `json:"order_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Request        order.Request      `json:"request"`
	Response       order.Confirmation `json:"response"`
	CreatedAt      time.Time          `json:"timestamp"`
}

// OrderStore is the supplier's order-history collaborator. Lookups return
// (nil, nil) when no order matches. GetByIdempotencyKey is what makes
// redelivered order requests safe: a hit returns the original confirmation
// instead of booking a duplicate order.
type OrderStore interface {
	Save(ctx context.Context, o *StoredOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*StoredOrder, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*StoredOrder, error)
	Recent(ctx context.Context, limit int) ([]*StoredOrder, int, error)
}

// MemoryOrderStore keeps order history in process memory. Used when no
// database is configured and by the handler tests.
type MemoryOrderStore struct {
	mu    sync.RWMutex
	byID  map[string]*StoredOrder
	byKey map[string]string // idempotency key -> order id
	ids   []string          // insertion order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		byID:  make(map[string]*StoredOrder),
		byKey: make(map[string]string),
	}
}

func (s *MemoryOrderStore) Save(_ context.Context, o *StoredOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[o.OrderID]; !exists {
		s.ids = append(s.ids, o.OrderID)
	}
	s.byID[o.OrderID] = o
	if o.IdempotencyKey != "" {
		s.byKey[o.IdempotencyKey] = o.OrderID
	}
	return nil
}

func (s *MemoryOrderStore) GetByOrderID(_ context.Context, orderID string) (*StoredOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[orderID], nil
}

func (s *MemoryOrderStore) GetByIdempotencyKey(_ context.Context, key string) (*StoredOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	return s.byID[id], nil
}

func (s *MemoryOrderStore) Recent(_ context.Context, limit int) ([]*StoredOrder, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.ids)
	start := 0
	if limit > 0 && total > limit {
		start = total - limit
	}
	out := make([]*StoredOrder, 0, total-start)
	for _, id := range s.ids[start:] {
		out = append(out, s.byID[id])
	}
	return out, total, nil
}
