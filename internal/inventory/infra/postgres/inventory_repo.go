package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bookstore/fulfillment/internal/inventory/app"
	"github.com/bookstore/fulfillment/internal/inventory/domain"
	"github.com/bookstore/fulfillment/pkg/postgres"
	"github.com/lib/pq"
)

type InventoryRepo struct {
	db *postgres.DB
}

func NewInventoryRepo(db *postgres.DB) *InventoryRepo {
	return &InventoryRepo{db: db}
}

const createRecordQuery = `
INSERT INTO inventory (product_id, stock_quantity, reorder_level, max_stock_level, last_restocked)
VALUES ($1, $2, $3, $4, $5)
RETURNING product_id, stock_quantity, reorder_level, max_stock_level, last_restocked, created_at, updated_at`

func (r *InventoryRepo) Create(ctx context.Context, rec domain.Record) (domain.Record, error) {
	var row domain.Record
	err := r.db.Ext(ctx).QueryRowxContext(ctx, createRecordQuery,
		rec.ProductID, rec.StockQuantity, rec.ReorderLevel, rec.MaxStockLevel, rec.LastRestocked,
	).StructScan(&row)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return domain.Record{}, app.ErrRecordExists
		case "foreign_key_violation":
			return domain.Record{}, app.ErrProductNotFound
		}
	}
	if err != nil {
		return domain.Record{}, err
	}
	return row, nil
}

const getRecordQuery = `
SELECT product_id, stock_quantity, reorder_level, max_stock_level, last_restocked, created_at, updated_at
FROM inventory
WHERE product_id = $1`

func (r *InventoryRepo) Get(ctx context.Context, productID string) (domain.Record, error) {
	var row domain.Record
	err := r.db.Ext(ctx).QueryRowxContext(ctx, getRecordQuery, productID).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, app.ErrProductNotFound
	}
	if err != nil {
		return domain.Record{}, err
	}
	return row, nil
}

const listRecordsQuery = `
SELECT product_id, stock_quantity, reorder_level, max_stock_level, last_restocked, created_at, updated_at
FROM inventory
ORDER BY product_id`

func (r *InventoryRepo) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := r.db.Ext(ctx).QueryxContext(ctx, listRecordsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.StructScan(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// The availability check lives inside the UPDATE so that concurrent debits of
// the last units serialize on the row and can never drive the counter negative.
const debitStockQuery = `
UPDATE inventory
SET stock_quantity = stock_quantity - $2, updated_at = now()
WHERE product_id = $1 AND stock_quantity >= $2`

func (r *InventoryRepo) DebitStock(ctx context.Context, productID string, qty int) (bool, error) {
	res, err := r.db.Ext(ctx).ExecContext(ctx, debitStockQuery, productID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const creditStockQuery = `
UPDATE inventory
SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE product_id = $1 AND (max_stock_level IS NULL OR stock_quantity + $2 <= max_stock_level)`

func (r *InventoryRepo) CreditStock(ctx context.Context, productID string, qty int) (bool, error) {
	res, err := r.db.Ext(ctx).ExecContext(ctx, creditStockQuery, productID, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const updateRecordQuery = `
UPDATE inventory
SET stock_quantity = $2, reorder_level = $3, max_stock_level = $4, last_restocked = $5, updated_at = now()
WHERE product_id = $1
RETURNING product_id, stock_quantity, reorder_level, max_stock_level, last_restocked, created_at, updated_at`

func (r *InventoryRepo) Update(ctx context.Context, rec domain.Record) (domain.Record, error) {
	var row domain.Record
	err := r.db.Ext(ctx).QueryRowxContext(ctx, updateRecordQuery,
		rec.ProductID, rec.StockQuantity, rec.ReorderLevel, rec.MaxStockLevel, rec.LastRestocked,
	).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, app.ErrProductNotFound
	}
	if err != nil {
		return domain.Record{}, err
	}
	return row, nil
}

const deleteRecordQuery = `DELETE FROM inventory WHERE product_id = $1`

func (r *InventoryRepo) Delete(ctx context.Context, productID string) error {
	res, err := r.db.Ext(ctx).ExecContext(ctx, deleteRecordQuery, productID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrProductNotFound
	}
	return nil
}
