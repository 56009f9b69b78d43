package adapter

import (
	"context"
	"errors"
	"fmt"

	catalogapp "github.com/bookstore/fulfillment/internal/catalog/app"
	orderapp "github.com/bookstore/fulfillment/internal/order/app"
)

type CatalogServiceReader struct {
	svc *catalogapp.Service
}

func NewCatalogServiceReader(svc *catalogapp.Service) *CatalogServiceReader {
	return &CatalogServiceReader{svc: svc}
}

func (r *CatalogServiceReader) GetProduct(ctx context.Context, productID string) (orderapp.Product, error) {
	p, err := r.svc.GetProduct(ctx, productID)
	if errors.Is(err, catalogapp.ErrNotFound) || errors.Is(err, catalogapp.ErrInvalidInput) {
		return orderapp.Product{}, fmt.Errorf("%w: product %s", orderapp.ErrProductNotFound, productID)
	}
	if err != nil {
		return orderapp.Product{}, err
	}

	return orderapp.Product{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Active:    p.IsActive,
	}, nil
}
