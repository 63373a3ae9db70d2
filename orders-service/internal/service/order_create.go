package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
)

// CreateOrder validates the request, then numbers, inserts and reserves stock for the order in
// one transaction. Any failure leaves neither an order row nor a stock change behind.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(
			attribute.String("customer.id", in.CustomerID.String()),
			attribute.String("order.type", string(in.OrderType)),
			attribute.Int("order.items", len(in.Items))))
	defer span.End()

	if err := in.Validate(); err != nil {
		recordError(span, err)
		return nil, err
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		customer, err := tx.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}

		now := s.clock()
		o := &domain.Order{
			ID:                s.newID(),
			CustomerID:        in.CustomerID,
			Customer:          customer,
			Type:              in.OrderType,
			Status:            domain.OrderStatusPending,
			DeliveryAddress:   in.DeliveryAddress,
			CustomDescription: in.CustomDescription,
			Notes:             in.Notes,
			Items:             []domain.OrderItem{},
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		subtotal := decimal.Zero
		if in.OrderType.AffectsStock() {
			if o.Items, err = s.buildItems(ctx, tx, o.ID, in.Items, nil); err != nil {
				return err
			}
			subtotal = domain.ItemsSubtotal(o.Items)
		} else if in.TotalAmount != nil {
			subtotal = *in.TotalAmount
		}
		err = o.ApplyTotals(subtotal, domain.Shipping{
			OriginalCost: in.OriginalShippingCost,
			Discount:     in.ShippingDiscount,
		})
		if err != nil {
			return err
		}

		seq, err := tx.NextOrderSequence(ctx, domain.OrderDay(now))
		if err != nil {
			return err
		}
		o.OrderNumber = domain.FormatOrderNumber(now, seq)

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, o.Items); err != nil {
			return err
		}
		if err := reserveItems(ctx, tx, o.Items); err != nil {
			return err
		}
		if err := s.recordEvent(ctx, tx, EventOrderCreated, o, ""); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	s.logger(ctx).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("order_type", string(order.Type)),
		zap.Int("items", len(order.Items)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}
