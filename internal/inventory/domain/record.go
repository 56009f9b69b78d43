package domain

import "time"

// Record tracks sellable stock for one product. StockQuantity is the single
// source of truth for units available to sell and is only ever changed through
// the ledger's atomic debit/credit operations.
type Record struct {
	ProductID     string     `db:"product_id"`
	StockQuantity int        `db:"stock_quantity"`
	ReorderLevel  int        `db:"reorder_level"`
	MaxStockLevel *int       `db:"max_stock_level"`
	LastRestocked *time.Time `db:"last_restocked"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// BelowReorderLevel reports whether the product should be flagged for
// replenishment. Informational only.
func (r Record) BelowReorderLevel() bool {
	return r.StockQuantity <= r.ReorderLevel
}
