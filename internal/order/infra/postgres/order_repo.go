package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bookstore/fulfillment/internal/order/app"
	"github.com/bookstore/fulfillment/internal/order/domain"
	"github.com/bookstore/fulfillment/pkg/postgres"
	"github.com/google/uuid"
)

type OrderRepo struct {
	db *postgres.DB
}

func NewOrderRepo(db *postgres.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

const orderColumns = `id, customer_id, order_date, order_status, payment_status, payment_method, total_amount, shipping_address, stock_adjusted, updated_at`

const insertOrderQuery = `
INSERT INTO orders (id, customer_id, order_date, order_status, payment_status, payment_method, total_amount, shipping_address, stock_adjusted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

const insertLineQuery = `
INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)`

func (r *OrderRepo) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ext := r.db.Ext(ctx)

	var created domain.Order
	err := ext.QueryRowxContext(ctx, insertOrderQuery,
		uuid.NewString(),
		order.CustomerID,
		order.OrderDate,
		order.Status,
		order.PaymentStatus,
		order.PaymentMethod,
		order.TotalAmount,
		order.ShippingAddress,
		order.StockAdjusted,
	).StructScan(&created)
	if err != nil {
		return domain.Order{}, err
	}

	created.Lines = make([]domain.Line, 0, len(order.Lines))
	for _, ln := range order.Lines {
		ln.ID = uuid.NewString()
		ln.OrderID = created.ID
		if _, err := ext.ExecContext(ctx, insertLineQuery,
			ln.ID, ln.OrderID, ln.ProductID, ln.Quantity, ln.UnitPrice, ln.Subtotal,
		); err != nil {
			return domain.Order{}, err
		}
		created.Lines = append(created.Lines, ln)
	}

	return created, nil
}

const getOrderQuery = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
const getOrderForUpdateQuery = getOrderQuery + ` FOR UPDATE`

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, getOrderQuery)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.get(ctx, id, getOrderForUpdateQuery)
}

func (r *OrderRepo) get(ctx context.Context, id, query string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, app.ErrOrderNotFound
	}

	var order domain.Order
	err := r.db.Ext(ctx).QueryRowxContext(ctx, query, id).StructScan(&order)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, app.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	order.Lines, err = r.lines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

const listLinesQuery = `
SELECT id, order_id, product_id, quantity, unit_price, subtotal
FROM order_lines
WHERE order_id = $1
ORDER BY id`

func (r *OrderRepo) lines(ctx context.Context, orderID string) ([]domain.Line, error) {
	rows, err := r.db.Ext(ctx).QueryxContext(ctx, listLinesQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Line
	for rows.Next() {
		var ln domain.Line
		if err := rows.StructScan(&ln); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

const updateStatusQuery = `
UPDATE orders
SET order_status = $2, payment_status = $3, stock_adjusted = $4, updated_at = now()
WHERE id = $1`

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, payment domain.PaymentStatus, stockAdjusted bool) error {
	res, err := r.db.Ext(ctx).ExecContext(ctx, updateStatusQuery, id, status, payment, stockAdjusted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrOrderNotFound
	}
	return nil
}

const listByCustomerQuery = `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY order_date DESC`

func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.list(ctx, listByCustomerQuery, customerID)
}

const listAllQuery = `SELECT ` + orderColumns + ` FROM orders ORDER BY order_date DESC`

func (r *OrderRepo) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, listAllQuery)
}

func (r *OrderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Ext(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.StructScan(&o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Lines, err = r.lines(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

const deleteLinesQuery = `DELETE FROM order_lines WHERE order_id = $1`
const deleteOrderQuery = `DELETE FROM orders WHERE id = $1`

func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return app.ErrOrderNotFound
	}

	ext := r.db.Ext(ctx)
	if _, err := ext.ExecContext(ctx, deleteLinesQuery, id); err != nil {
		return err
	}

	res, err := ext.ExecContext(ctx, deleteOrderQuery, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrOrderNotFound
	}
	return nil
}
