package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/bookstore/fulfillment/internal/inventory/app"
	"github.com/bookstore/fulfillment/internal/inventory/domain"
	"github.com/bookstore/fulfillment/pkg/httpx"
)

// Server exposes the administrative inventory surface. Stock corrections made
// here go through the same repository as the order workflows' debits and
// credits, never around them.
type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /inventory", s.createRecord)
	mux.HandleFunc("GET /inventory", s.listRecords)
	mux.HandleFunc("GET /inventory/{productID}", s.getRecord)
	mux.HandleFunc("PUT /inventory/{productID}", s.updateRecord)
	mux.HandleFunc("DELETE /inventory/{productID}", s.deleteRecord)
}

type createRecordRequest struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
	ReorderLevel  *int   `json:"reorder_level,omitempty"`
	MaxStockLevel *int   `json:"max_stock_level,omitempty"`
}

type updateRecordRequest struct {
	StockQuantity *int `json:"stock_quantity,omitempty"`
	ReorderLevel  *int `json:"reorder_level,omitempty"`
	MaxStockLevel *int `json:"max_stock_level,omitempty"`
}

type recordResponse struct {
	ProductID     string     `json:"product_id"`
	StockQuantity int        `json:"stock_quantity"`
	ReorderLevel  int        `json:"reorder_level"`
	MaxStockLevel *int       `json:"max_stock_level,omitempty"`
	LastRestocked *time.Time `json:"last_restocked,omitempty"`
	BelowReorder  bool       `json:"below_reorder_level"`
}

func toRecordResponse(rec domain.Record) recordResponse {
	return recordResponse{
		ProductID:     rec.ProductID,
		StockQuantity: rec.StockQuantity,
		ReorderLevel:  rec.ReorderLevel,
		MaxStockLevel: rec.MaxStockLevel,
		LastRestocked: rec.LastRestocked,
		BelowReorder:  rec.BelowReorderLevel(),
	}
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}
	if req.ProductID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "product_id is required")
		return
	}

	rec, err := s.svc.Create(r.Context(), app.CreateRecordRequest{
		ProductID:     req.ProductID,
		StockQuantity: req.StockQuantity,
		ReorderLevel:  req.ReorderLevel,
		MaxStockLevel: req.MaxStockLevel,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), r.PathValue("productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var req updateRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return
	}

	rec, err := s.svc.Update(r.Context(), app.UpdateRecordRequest{
		ProductID:     r.PathValue("productID"),
		StockQuantity: req.StockQuantity,
		ReorderLevel:  req.ReorderLevel,
		MaxStockLevel: req.MaxStockLevel,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("productID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrProductNotFound):
		httpx.WriteError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, app.ErrInsufficientStock):
		httpx.WriteError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
	case errors.Is(err, app.ErrCapacityExceeded):
		httpx.WriteError(w, http.StatusConflict, "CAPACITY_EXCEEDED", err.Error())
	case errors.Is(err, app.ErrRecordExists):
		httpx.WriteError(w, http.StatusConflict, "RECORD_EXISTS", err.Error())
	case errors.Is(err, app.ErrInvalidQuantity):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
