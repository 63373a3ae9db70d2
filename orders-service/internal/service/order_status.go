package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
)

// UpdateOrderStatus applies one transition of the status machine. Entering CANCELLED releases the
// stock held by a product order in the same transaction. The order row is locked first, so a
// second cancellation sees CANCELLED and returns without touching stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, in UpdateOrderStatusInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderStatus",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID.String()),
			attribute.String("order.status", string(in.Status))))
	defer span.End()

	next, err := domain.ParseOrderStatus(string(in.Status))
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	var (
		order    *domain.Order
		previous domain.OrderStatus
		changed  bool
	)
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		order = o
		previous = o.Status

		if o.Status == domain.OrderStatusCancelled && next == domain.OrderStatusCancelled {
			return nil
		}

		if err := o.TransitionTo(next, s.clock()); err != nil {
			return err
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
		}
		if next == domain.OrderStatusCancelled && o.Type.AffectsStock() {
			if err := releaseItems(ctx, tx, o.Items); err != nil {
				return err
			}
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		changed = true
		return s.recordEvent(ctx, tx, EventOrderStatusChanged, o, previous)
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !changed {
		return order, nil
	}

	s.invalidate(ctx, order.ID)
	s.logger(ctx).Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(order.Status)))
	return order, nil
}
