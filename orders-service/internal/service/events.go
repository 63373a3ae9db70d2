package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// OrderEvent is the payload published for every committed order mutation.
type OrderEvent struct {
	EventID        string             `json:"event_id"`
	EventType      string             `json:"event_type"`
	OrderID        uuid.UUID          `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	CustomerID     uuid.UUID          `json:"customer_id"`
	OrderType      domain.OrderType   `json:"order_type"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// recordEvent appends an event to the outbox inside tx, so it commits or rolls back with the
// order change it describes.
func (s *OrderService) recordEvent(
	ctx context.Context,
	tx repository.Tx,
	eventType string,
	order *domain.Order,
	previous domain.OrderStatus) error {

	now := s.clock()
	event := OrderEvent{
		EventID:        s.eventID(),
		EventType:      eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		OrderType:      order.Type,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalAmount:    order.TotalAmount,
		OccurredAt:     now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return tx.AppendOutboxEvent(ctx, &repository.OutboxEvent{
		ID:          event.EventID,
		AggregateID: order.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   now,
	})
}
