package app

import (
	"context"
	"errors"
	"strings"

	"github.com/bookstore/fulfillment/internal/catalog/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("product not found")
)

type Service struct {
	repo ProductRepo
}

func NewService(repo ProductRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateProduct(ctx context.Context, name, author string, unitPrice decimal.Decimal) (domain.Product, error) {
	name = strings.TrimSpace(name)
	author = strings.TrimSpace(author)

	if name == "" || author == "" || unitPrice.Sign() <= 0 {
		return domain.Product{}, ErrInvalidInput
	}

	return s.repo.Create(ctx, domain.Product{
		Name:      name,
		Author:    author,
		UnitPrice: unitPrice,
		IsActive:  true,
	})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}
