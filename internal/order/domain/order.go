package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethodCOD is the one payment method the workflow treats specially:
// settlement is deferred until delivery instead of captured at order time.
const PaymentMethodCOD = "cod"

type Order struct {
	ID              string          `db:"id"`
	CustomerID      string          `db:"customer_id"`
	OrderDate       time.Time       `db:"order_date"`
	Status          Status          `db:"order_status"`
	PaymentStatus   PaymentStatus   `db:"payment_status"`
	PaymentMethod   string          `db:"payment_method"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	ShippingAddress string          `db:"shipping_address"`

	// StockAdjusted records whether this order's lines have been debited from
	// inventory. It is the idempotency guard against double debit on repeated
	// confirmation and against fabricated credits on cancellation.
	StockAdjusted bool      `db:"stock_adjusted"`
	UpdatedAt     time.Time `db:"updated_at"`

	Lines []Line `db:"-"`
}

func (o Order) IsCOD() bool {
	return o.PaymentMethod == PaymentMethodCOD
}

// Line is an immutable snapshot taken at purchase time. Later catalog price
// changes never alter UnitPrice or Subtotal.
type Line struct {
	ID        string          `db:"id"`
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal"`
}
