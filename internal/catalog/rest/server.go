package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/bookstore/fulfillment/internal/catalog/app"
	"github.com/bookstore/fulfillment/internal/catalog/domain"
	"github.com/bookstore/fulfillment/pkg/httpx"
	"github.com/shopspring/decimal"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /products", s.createProduct)
	mux.HandleFunc("GET /products", s.listProducts)
	mux.HandleFunc("GET /products/{id}", s.getProduct)
}

type createProductRequest struct {
	Name      string `json:"name"`
	Author    string `json:"author"`
	UnitPrice string `json:"unit_price"`
}

type productResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	UnitPrice string    `json:"unit_price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Author:    p.Author,
		UnitPrice: p.UnitPrice.String(),
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "unit_price must be a decimal string")
		return
	}

	p, err := s.svc.CreateProduct(r.Context(), req.Name, req.Author, price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toProductResponse(p))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProductResponse(p))
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
