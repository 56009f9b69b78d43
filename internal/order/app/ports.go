package app

import (
	"context"
	"time"

	"github.com/bookstore/fulfillment/internal/order/domain"
	"github.com/shopspring/decimal"
)

// Transactor scopes a function to one storage transaction. Repositories called
// inside fn join that transaction through the context.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

type OrderRepo interface {
	// Create persists the order and its lines.
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	// GetForUpdate locks the order row for the duration of the surrounding
	// transaction so concurrent status changes serialize.
	GetForUpdate(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, payment domain.PaymentStatus, stockAdjusted bool) error
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	// Delete removes the order and its lines.
	Delete(ctx context.Context, id string) error
}

// InventoryLedger is the order workflows' view of the stock counters. Debit
// and Credit are atomic conditional adjustments; a failed Debit is
// authoritative even when an earlier CheckAvailable succeeded.
type InventoryLedger interface {
	CheckAvailable(ctx context.Context, productID string, qty int) (bool, error)
	Debit(ctx context.Context, productID string, qty int) error
	Credit(ctx context.Context, productID string, qty int) error
}

type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Active    bool
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

const (
	EventOrderPlaced        = "order_placed"
	EventOrderStatusChanged = "order_status_changed"
)

type Event struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"order_id"`
	CustomerID    string               `json:"customer_id"`
	Status        domain.Status        `json:"order_status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TotalAmount   string               `json:"total_amount"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// EventPublisher feeds the reporting side. Publishing is best effort; a
// failure never rolls back the order mutation it describes.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
