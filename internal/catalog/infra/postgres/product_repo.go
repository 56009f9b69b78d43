package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bookstore/fulfillment/internal/catalog/app"
	"github.com/bookstore/fulfillment/internal/catalog/domain"
	"github.com/bookstore/fulfillment/pkg/postgres"
	"github.com/google/uuid"
)

type ProductRepo struct {
	db *postgres.DB
}

func NewProductRepo(db *postgres.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const createProductQuery = `
INSERT INTO products (id, name, author, unit_price, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, author, unit_price, is_active, created_at, updated_at`

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	var row domain.Product
	err := r.db.Ext(ctx).QueryRowxContext(ctx, createProductQuery,
		uuid.NewString(), p.Name, p.Author, p.UnitPrice, p.IsActive,
	).StructScan(&row)
	if err != nil {
		return domain.Product{}, err
	}
	return row, nil
}

const getProductQuery = `
SELECT id, name, author, unit_price, is_active, created_at, updated_at
FROM products
WHERE id = $1`

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, app.ErrNotFound
	}

	var row domain.Product
	err := r.db.Ext(ctx).QueryRowxContext(ctx, getProductQuery, id).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return row, nil
}

const listProductsQuery = `
SELECT id, name, author, unit_price, is_active, created_at, updated_at
FROM products
ORDER BY name`

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Ext(ctx).QueryxContext(ctx, listProductsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.StructScan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
