package backend

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is one catalog item tracked by the inventory backend.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	StockQuantity int     `json:"stock_quantity"`
	Price         float64 `json:"price"`
	SupplierID    string  `json:"supplier_id"`
}

// ProductStore is the inventory record collaborator behind a narrow
// read/write interface; the pipeline core never touches it directly.
type ProductStore interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	SetStock(ctx context.Context, id string, quantity int) (*Product, error)
	DeductStock(ctx context.Context, id string, quantity int) (*Product, error)
}

// MemoryProductStore keeps products in process memory, guarded by a mutex.
type MemoryProductStore struct {
	mu       sync.RWMutex
	products map[string]Product
	ids      []string
}

// NewMemoryProductStore seeds the demo catalog.
func NewMemoryProductStore() *MemoryProductStore {
	s := &MemoryProductStore{products: make(map[string]Product)}
	for _, p := range []Product{
		{ID: "prod-001", Name: "Wireless Headphones", StockQuantity: 5, Price: 99.99, SupplierID: "supp-001"},
		{ID: "prod-002", Name: "Bluetooth Speaker", StockQuantity: 15, Price: 49.99, SupplierID: "supp-002"},
		{ID: "prod-003", Name: "USB-C Cable", StockQuantity: 3, Price: 12.99, SupplierID: "supp-001"},
	} {
		s.products[p.ID] = p
		s.ids = append(s.ids, p.ID)
	}
	return s
}

func (s *MemoryProductStore) List(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.products[id])
	}
	return out, nil
}

func (s *MemoryProductStore) Get(_ context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (s *MemoryProductStore) SetStock(_ context.Context, id string, quantity int) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.StockQuantity = quantity
	s.products[id] = p
	return &p, nil
}

func (s *MemoryProductStore) DeductStock(_ context.Context, id string, quantity int) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	if p.StockQuantity < quantity {
		return nil, ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	s.products[id] = p
	return &p, nil
}
