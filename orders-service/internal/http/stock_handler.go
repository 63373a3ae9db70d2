package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

type StockAdjuster interface {
	AdjustStock(ctx context.Context, productID uuid.UUID, op domain.StockAdjustment, quantity int) (int, error)
}

type StockHandler struct {
	stock       StockAdjuster
	timeout     time.Duration
	maxBodySize int64
}

func NewStockHandler(stock StockAdjuster, timeout time.Duration, maxBodySize int64) *StockHandler {
	return &StockHandler{
		stock:       stock,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type AdjustStockRequestDTO struct {
	Operation string `json:"operation"`
	Quantity  int    `json:"quantity"`
}

type AdjustStockResponse struct {
	ProductID     uuid.UUID `json:"product_id"`
	StockQuantity int       `json:"stock_quantity"`
}

func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := uuidParam(w, r, "product_id")
	if !ok {
		return
	}
	var req AdjustStockRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	op := domain.StockAdjustment(strings.ToLower(strings.TrimSpace(req.Operation)))
	stock, err := h.stock.AdjustStock(ctx, productID, op, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AdjustStockResponse{ProductID: productID, StockQuantity: stock})
}
