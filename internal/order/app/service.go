package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookstore/fulfillment/internal/order/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCapacityExceeded  = errors.New("max stock level exceeded")
)

type Service struct {
	tx      Transactor
	orders  OrderRepo
	ledger  InventoryLedger
	catalog CatalogReader
	events  EventPublisher
	log     *slog.Logger

	maxConcurrent int
}

func NewService(tx Transactor, orders OrderRepo, ledger InventoryLedger, catalog CatalogReader, events EventPublisher, log *slog.Logger, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		tx:            tx,
		orders:        orders,
		ledger:        ledger,
		catalog:       catalog,
		events:        events,
		log:           log,
		maxConcurrent: maxConcurrent,
	}
}

type CartLine struct {
	ProductID string
	Quantity  int
}

type PlaceOrderRequest struct {
	CustomerID      string
	Lines           []CartLine
	ShippingAddress string
	PaymentMethod   string
}

// PlaceOrder turns a cart into a persisted order. Prices are snapshotted from
// the catalog at this moment; the order, its lines, the stock debits and the
// stock_adjusted flag commit as one transaction, so a failed debit leaves no
// partial order behind. This is the single debit point of the order lifecycle;
// the confirmation path re-checks the flag and finds it already set.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if req.CustomerID == "" {
		return domain.Order{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	if len(req.Lines) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	for _, ln := range req.Lines {
		if ln.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: quantity must be positive for product %s", ErrInvalidInput, ln.ProductID)
		}
	}

	lines := make([]domain.Line, len(req.Lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range req.Lines {
		g.Go(func() error {
			cl := req.Lines[idx]

			p, err := s.catalog.GetProduct(gctx, cl.ProductID)
			if err != nil {
				return err
			}
			if !p.Active {
				return fmt.Errorf("%w: product %s is inactive", ErrProductNotFound, cl.ProductID)
			}

			// Advisory only; the debit below is the authoritative check.
			ok, err := s.ledger.CheckAvailable(gctx, cl.ProductID, cl.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: product %s", ErrInsufficientStock, cl.ProductID)
			}

			qty := decimal.NewFromInt(int64(cl.Quantity))
			lines[idx] = domain.Line{
				ProductID: cl.ProductID,
				Quantity:  cl.Quantity,
				UnitPrice: p.UnitPrice,
				Subtotal:  p.UnitPrice.Mul(qty),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Order{}, err
	}

	total := decimal.Zero
	for _, ln := range lines {
		total = total.Add(ln.Subtotal)
	}

	paymentStatus := domain.PaymentPaid
	if req.PaymentMethod == domain.PaymentMethodCOD {
		paymentStatus = domain.PaymentPending
	}

	order := domain.Order{
		CustomerID:      req.CustomerID,
		OrderDate:       time.Now().UTC(),
		Status:          domain.StatusWaitingForConfirmation,
		PaymentStatus:   paymentStatus,
		PaymentMethod:   req.PaymentMethod,
		TotalAmount:     total,
		ShippingAddress: req.ShippingAddress,
		StockAdjusted:   false,
		Lines:           lines,
	}

	var created domain.Order
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.orders.Create(ctx, order)
		if err != nil {
			return err
		}

		for _, ln := range created.Lines {
			if err := s.ledger.Debit(ctx, ln.ProductID, ln.Quantity); err != nil {
				return err
			}
		}

		created.StockAdjusted = true
		return s.orders.UpdateStatus(ctx, created.ID, created.Status, created.PaymentStatus, true)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order placed",
		"order_id", created.ID,
		"customer_id", created.CustomerID,
		"total", created.TotalAmount.String(),
		"payment_method", created.PaymentMethod,
	)
	s.publish(ctx, EventOrderPlaced, created)

	return created, nil
}

// RequestStatusChange drives the order status workflow: lock the order,
// decide the transition with the pure state machine, run the decided stock
// adjustments, and persist — all in one transaction.
func (s *Service) RequestStatusChange(ctx context.Context, orderID string, change domain.Change) (domain.Order, error) {
	var updated domain.Order
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		out, err := domain.Decide(order, change)
		if err != nil {
			s.log.Warn("status change rejected",
				"order_id", orderID,
				"from", order.Status,
				"to", change.Status,
			)
			return err
		}

		switch out.Action {
		case domain.StockDebit:
			for _, ln := range order.Lines {
				if err := s.ledger.Debit(ctx, ln.ProductID, ln.Quantity); err != nil {
					return err
				}
			}
		case domain.StockCredit:
			for _, ln := range order.Lines {
				if err := s.ledger.Credit(ctx, ln.ProductID, ln.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.orders.UpdateStatus(ctx, orderID, out.Status, out.PaymentStatus, out.StockAdjusted); err != nil {
			return err
		}

		updated = order
		updated.Status = out.Status
		updated.PaymentStatus = out.PaymentStatus
		updated.StockAdjusted = out.StockAdjusted
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order status changed",
		"order_id", updated.ID,
		"status", updated.Status,
		"payment_status", updated.PaymentStatus,
	)
	s.publish(ctx, EventOrderStatusChanged, updated)

	return updated, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	return s.orders.Get(ctx, orderID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// Delete is the administrative purge. Lines go with the order; stock is not
// touched, corrections run through the inventory endpoints.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	return s.tx.Transact(ctx, func(ctx context.Context) error {
		return s.orders.Delete(ctx, orderID)
	})
}

func (s *Service) publish(ctx context.Context, eventType string, o domain.Order) {
	if s.events == nil {
		return
	}
	ev := Event{
		Type:          eventType,
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount.String(),
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Error("event publish failed", "type", eventType, "order_id", o.ID, "err", err)
	}
}
