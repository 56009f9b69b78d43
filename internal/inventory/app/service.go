package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookstore/fulfillment/internal/inventory/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCapacityExceeded  = errors.New("max stock level exceeded")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrRecordExists      = errors.New("inventory record already exists")
)

const defaultReorderLevel = 10

// Service is the inventory ledger. All stock mutation funnels through Debit
// and Credit; administrative corrections go through Update on the same repo.
type Service struct {
	repo InventoryRepo
	log  *slog.Logger
}

func NewService(repo InventoryRepo, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// CheckAvailable reports whether a record exists for productID with at least
// qty units on hand. Read-only; a later Debit is still authoritative.
func (s *Service) CheckAvailable(ctx context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}

	rec, err := s.repo.Get(ctx, productID)
	if errors.Is(err, ErrProductNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.StockQuantity >= qty, nil
}

// Debit atomically removes qty units from the product's stock.
func (s *Service) Debit(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	applied, err := s.repo.DebitStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	// The conditional update matched nothing: either the record is missing
	// or the decrement would have gone negative.
	if _, err := s.repo.Get(ctx, productID); err != nil {
		return annotate(err, productID)
	}

	s.log.Warn("stock debit rejected", "product_id", productID, "qty", qty)
	return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
}

// Credit atomically returns qty units to the product's stock, capped at
// max_stock_level when one is configured.
func (s *Service) Credit(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	applied, err := s.repo.CreditStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}

	if _, err := s.repo.Get(ctx, productID); err != nil {
		return annotate(err, productID)
	}

	s.log.Warn("stock credit rejected", "product_id", productID, "qty", qty)
	return fmt.Errorf("%w: product %s", ErrCapacityExceeded, productID)
}

func annotate(err error, productID string) error {
	if errors.Is(err, ErrProductNotFound) {
		return fmt.Errorf("%w: product %s", ErrProductNotFound, productID)
	}
	return err
}

type CreateRecordRequest struct {
	ProductID     string
	StockQuantity int
	ReorderLevel  *int
	MaxStockLevel *int
}

func (s *Service) Create(ctx context.Context, req CreateRecordRequest) (domain.Record, error) {
	if req.StockQuantity < 0 {
		return domain.Record{}, ErrInvalidQuantity
	}

	rec := domain.Record{
		ProductID:     req.ProductID,
		StockQuantity: req.StockQuantity,
		ReorderLevel:  defaultReorderLevel,
		MaxStockLevel: req.MaxStockLevel,
	}
	if req.ReorderLevel != nil && *req.ReorderLevel >= 0 {
		rec.ReorderLevel = *req.ReorderLevel
	}
	if req.StockQuantity > 0 {
		now := time.Now().UTC()
		rec.LastRestocked = &now
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return domain.Record{}, err
	}

	s.log.Info("inventory record created", "product_id", created.ProductID, "stock", created.StockQuantity)
	return created, nil
}

func (s *Service) Get(ctx context.Context, productID string) (domain.Record, error) {
	return s.repo.Get(ctx, productID)
}

func (s *Service) List(ctx context.Context) ([]domain.Record, error) {
	return s.repo.List(ctx)
}

type UpdateRecordRequest struct {
	ProductID     string
	StockQuantity *int
	ReorderLevel  *int
	MaxStockLevel *int
}

// Update applies an administrative correction. Setting the stock counter
// refreshes last_restocked; reorder and max levels change independently.
func (s *Service) Update(ctx context.Context, req UpdateRecordRequest) (domain.Record, error) {
	rec, err := s.repo.Get(ctx, req.ProductID)
	if err != nil {
		return domain.Record{}, err
	}

	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			return domain.Record{}, ErrInvalidQuantity
		}
		rec.StockQuantity = *req.StockQuantity
		now := time.Now().UTC()
		rec.LastRestocked = &now
	}
	if req.ReorderLevel != nil {
		if *req.ReorderLevel < 0 {
			return domain.Record{}, ErrInvalidQuantity
		}
		rec.ReorderLevel = *req.ReorderLevel
	}
	if req.MaxStockLevel != nil {
		rec.MaxStockLevel = req.MaxStockLevel
	}

	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return domain.Record{}, err
	}

	s.log.Info("inventory record updated", "product_id", updated.ProductID, "stock", updated.StockQuantity)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, productID string) error {
	return s.repo.Delete(ctx, productID)
}
