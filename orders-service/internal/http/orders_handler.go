package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
	"github.com/fjod/go_backoffice/orders-service/internal/service"
)

const maxListLimit = 100

// OrderService is the part of service.OrderService the handlers call.
type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error)
	UpdateOrder(ctx context.Context, in service.UpdateOrderInput) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, in service.UpdateOrderStatusInput) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

type OrdersHandler struct {
	orders      OrderService
	timeout     time.Duration
	maxBodySize int64
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, maxBodySize int64) *OrdersHandler {
	return &OrdersHandler{
		orders:      orders,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type ItemRequestDTO struct {
	ProductID      string           `json:"product_id"`
	Quantity       int              `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price,omitempty"`
	RequestedColor string           `json:"requested_color,omitempty"`
}

// Money fields accept both JSON numbers and decimal strings ("1250.00").
type CreateOrderRequestDTO struct {
	CustomerID           string           `json:"customer_id"`
	OrderType            string           `json:"order_type"`
	DeliveryAddress      domain.Address   `json:"delivery_address"`
	CustomDescription    string           `json:"custom_description,omitempty"`
	Items                []ItemRequestDTO `json:"items,omitempty"`
	OriginalShippingCost decimal.Decimal  `json:"original_shipping_cost"`
	ShippingDiscount     decimal.Decimal  `json:"shipping_discount"`
	TotalAmount          *decimal.Decimal `json:"total_amount,omitempty"`
	Notes                string           `json:"notes,omitempty"`
}

type UpdateOrderRequestDTO struct {
	DeliveryAddress      *domain.Address   `json:"delivery_address,omitempty"`
	OriginalShippingCost *decimal.Decimal  `json:"original_shipping_cost,omitempty"`
	ShippingDiscount     *decimal.Decimal  `json:"shipping_discount,omitempty"`
	Items                *[]ItemRequestDTO `json:"items,omitempty"`
	TotalAmount          *decimal.Decimal  `json:"total_amount,omitempty"`
	Notes                *string           `json:"notes,omitempty"`
}

type UpdateStatusRequestDTO struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_customer_id", "customer_id must be a UUID")
		return
	}
	orderType, err := domain.ParseOrderType(req.OrderType)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_type", "order_type must be product or custom")
		return
	}
	items, err := toItemInputs(req.Items)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", err.Error())
		return
	}

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderInput{
		CustomerID:           customerID,
		OrderType:            orderType,
		DeliveryAddress:      sanitizeAddress(req.DeliveryAddress),
		CustomDescription:    sanitizeText(req.CustomDescription),
		Items:                items,
		OriginalShippingCost: req.OriginalShippingCost,
		ShippingDiscount:     req.ShippingDiscount,
		TotalAmount:          req.TotalAmount,
		Notes:                sanitizeText(req.Notes),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+order.ID.String())
	respondJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, err := parseOrderFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, ListOrdersResponse{Orders: orders, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *OrdersHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}
	var req UpdateOrderRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	in := service.UpdateOrderInput{
		OrderID:     orderID,
		TotalAmount: req.TotalAmount,
		Notes:       sanitizeTextPtr(req.Notes),
	}
	if req.DeliveryAddress != nil {
		address := sanitizeAddress(*req.DeliveryAddress)
		in.DeliveryAddress = &address
	}
	if req.OriginalShippingCost != nil || req.ShippingDiscount != nil {
		in.Shipping = &service.ShippingInput{
			OriginalCost: req.OriginalShippingCost,
			Discount:     req.ShippingDiscount,
		}
	}
	if req.Items != nil {
		items, err := toItemInputs(*req.Items)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_product_id", err.Error())
			return
		}
		if items == nil {
			items = []service.ItemInput{}
		}
		in.Items = &items
	}

	order, err := h.orders.UpdateOrder(ctx, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid_status", "status is required")
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, service.UpdateOrderStatusInput{
		OrderID: orderID,
		Status:  domain.OrderStatus(req.Status),
		Notes:   sanitizeTextPtr(req.Notes),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(ctx, orderID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into dst, rejecting unknown fields and oversized bodies.
func (h *OrdersHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return decodeJSON(w, r, h.maxBodySize, dst)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBodySize int64, dst interface{}) bool {
	if maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid JSON body",
			Code:    "invalid_request",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func toItemInputs(items []ItemRequestDTO) ([]service.ItemInput, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]service.ItemInput, 0, len(items))
	for i, item := range items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("items[%d].product_id must be a UUID", i)
		}
		out = append(out, service.ItemInput{
			ProductID:      productID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			RequestedColor: sanitizeText(item.RequestedColor),
		})
	}
	return out, nil
}

func parseOrderFilter(r *http.Request) (repository.OrderFilter, error) {
	q := r.URL.Query()
	filter := repository.OrderFilter{Limit: 20}

	if raw := q.Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("customer_id must be a UUID")
		}
		filter.CustomerID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxListLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}
