package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/bookstore/fulfillment/internal/order/app"
	"github.com/bookstore/fulfillment/internal/order/domain"
	"github.com/bookstore/fulfillment/pkg/httpx"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", s.placeOrder)
	mux.HandleFunc("GET /orders", s.listOrders)
	mux.HandleFunc("GET /orders/{id}", s.getOrder)
	mux.HandleFunc("POST /orders/{id}/status", s.changeStatus)
	mux.HandleFunc("DELETE /orders/{id}", s.deleteOrder)
	mux.HandleFunc("GET /customers/{id}/orders", s.listCustomerOrders)
}

type cartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	CustomerID      string     `json:"customer_id"`
	ShippingAddress string     `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method"`
	Lines           []cartLine `json:"lines"`
}

type lineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id"`
	OrderDate       time.Time      `json:"order_date"`
	OrderStatus     string         `json:"order_status"`
	PaymentStatus   string         `json:"payment_status"`
	PaymentMethod   string         `json:"payment_method"`
	TotalAmount     string         `json:"total_amount"`
	ShippingAddress string         `json:"shipping_address"`
	StockAdjusted   bool           `json:"stock_adjusted"`
	Lines           []lineResponse `json:"lines"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]lineResponse, 0, len(o.Lines))
	for _, ln := range o.Lines {
		lines = append(lines, lineResponse{
			ID:        ln.ID,
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice.String(),
			Subtotal:  ln.Subtotal.String(),
		})
	}
	return orderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		OrderDate:       o.OrderDate,
		OrderStatus:     string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   o.PaymentMethod,
		TotalAmount:     o.TotalAmount.String(),
		ShippingAddress: o.ShippingAddress,
		StockAdjusted:   o.StockAdjusted,
		Lines:           lines,
	}
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	lines := make([]app.CartLine, 0, len(req.Lines))
	for _, ln := range req.Lines {
		lines = append(lines, app.CartLine{ProductID: ln.ProductID, Quantity: ln.Quantity})
	}

	order, err := s.svc.PlaceOrder(r.Context(), app.PlaceOrderRequest{
		CustomerID:      req.CustomerID,
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

type changeStatusRequest struct {
	OrderStatus   string `json:"order_status"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}
	if req.OrderStatus == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "order_status is required")
		return
	}

	order, err := s.svc.RequestStatusChange(r.Context(), r.PathValue("id"), domain.Change{
		Status:        domain.Status(req.OrderStatus),
		PaymentStatus: domain.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (s *Server) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.ListByCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// writeDomainError maps the workflow error taxonomy to stable wire codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrOrderNotFound):
		httpx.WriteError(w, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
	case errors.Is(err, app.ErrProductNotFound):
		httpx.WriteError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, app.ErrInsufficientStock):
		httpx.WriteError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, app.ErrCapacityExceeded):
		httpx.WriteError(w, http.StatusConflict, "CAPACITY_EXCEEDED", err.Error())
	case errors.Is(err, app.ErrEmptyCart):
		httpx.WriteError(w, http.StatusBadRequest, "EMPTY_CART", err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
