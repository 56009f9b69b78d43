package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Author    string          `db:"author"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}
