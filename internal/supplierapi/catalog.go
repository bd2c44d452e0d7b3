package supplierapi

// CatalogItem is one supplier catalog entry with static pricing.
type CatalogItem struct {
	Name         string  `json:"name"`
	UnitCost     float64 `json:"unit_cost"`
	DeliveryDays int     `json:"delivery_days"`
}

// DefaultCatalog mirrors the demo supplier's product list. Unknown products
// fall back to the "default" entry rather than failing the order.
func DefaultCatalog() map[string]CatalogItem {
	return map[string]CatalogItem{
		"prod-001": {Name: "Wireless Headphones", UnitCost: 45.00, DeliveryDays: 3},
		"prod-002": {Name: "Bluetooth Speaker", UnitCost: 25.00, DeliveryDays: 2},
		"prod-003": {Name: "USB-C Cable", UnitCost: 5.00, DeliveryDays: 1},
		"default":  {Name: "Generic Product", UnitCost: 10.00, DeliveryDays: 5},
	}
}
