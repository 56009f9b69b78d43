package app

import (
	"context"

	"github.com/bookstore/fulfillment/internal/inventory/domain"
)

// InventoryRepo is the storage contract for stock counters. DebitStock and
// CreditStock must each be a single conditional read-modify-write: the
// availability (or capacity) check happens inside the same statement as the
// counter update, never as a separate read followed by a write.
type InventoryRepo interface {
	Create(ctx context.Context, rec domain.Record) (domain.Record, error)
	Get(ctx context.Context, productID string) (domain.Record, error)
	List(ctx context.Context) ([]domain.Record, error)

	// DebitStock decrements stock_quantity by qty iff the result stays >= 0.
	// Returns false when no row matched (missing record or short stock).
	DebitStock(ctx context.Context, productID string, qty int) (bool, error)

	// CreditStock increments stock_quantity by qty iff max_stock_level would
	// not be exceeded. Returns false when no row matched.
	CreditStock(ctx context.Context, productID string, qty int) (bool, error)

	Update(ctx context.Context, rec domain.Record) (domain.Record, error)
	Delete(ctx context.Context, productID string) error
}
