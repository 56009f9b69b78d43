package adapter

import (
	"context"
	"errors"
	"fmt"

	inventoryapp "github.com/bookstore/fulfillment/internal/inventory/app"
	orderapp "github.com/bookstore/fulfillment/internal/order/app"
)

// InventoryServiceLedger adapts the inventory ledger service to the order
// workflows' port, translating inventory errors into the order context's
// taxonomy so transport mapping stays in one place.
type InventoryServiceLedger struct {
	svc *inventoryapp.Service
}

func NewInventoryServiceLedger(svc *inventoryapp.Service) *InventoryServiceLedger {
	return &InventoryServiceLedger{svc: svc}
}

func (l *InventoryServiceLedger) CheckAvailable(ctx context.Context, productID string, qty int) (bool, error) {
	return l.svc.CheckAvailable(ctx, productID, qty)
}

func (l *InventoryServiceLedger) Debit(ctx context.Context, productID string, qty int) error {
	return translate(l.svc.Debit(ctx, productID, qty), productID)
}

func (l *InventoryServiceLedger) Credit(ctx context.Context, productID string, qty int) error {
	return translate(l.svc.Credit(ctx, productID, qty), productID)
}

func translate(err error, productID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventoryapp.ErrProductNotFound):
		return fmt.Errorf("%w: product %s", orderapp.ErrProductNotFound, productID)
	case errors.Is(err, inventoryapp.ErrInsufficientStock):
		return fmt.Errorf("%w: product %s", orderapp.ErrInsufficientStock, productID)
	case errors.Is(err, inventoryapp.ErrCapacityExceeded):
		return fmt.Errorf("%w: product %s", orderapp.ErrCapacityExceeded, productID)
	default:
		return err
	}
}
