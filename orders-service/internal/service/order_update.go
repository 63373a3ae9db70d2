package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
)

// UpdateOrder edits a PENDING or CONFIRMED order. Replacing items swaps the lines and applies
// the net stock change per product in the same transaction, so a failed reservation leaves the
// original items and stock exactly as they were.
func (s *OrderService) UpdateOrder(ctx context.Context, in UpdateOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrder",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID.String()),
			attribute.Bool("order.items_replaced", in.Items != nil)))
	defer span.End()

	if err := in.Validate(); err != nil {
		recordError(span, err)
		return nil, err
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !o.Status.IsEditable() {
			return fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotEditable, o.OrderNumber, o.Status)
		}

		if in.DeliveryAddress != nil {
			o.DeliveryAddress = *in.DeliveryAddress
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
		}

		shipping := o.Shipping()
		if in.Shipping != nil {
			if in.Shipping.OriginalCost != nil {
				shipping.OriginalCost = *in.Shipping.OriginalCost
			}
			if in.Shipping.Discount != nil {
				shipping.Discount = *in.Shipping.Discount
			}
		}
		if err := shipping.Validate(); err != nil {
			return err
		}

		subtotal := o.Subtotal
		switch o.Type {
		case domain.OrderTypeProduct:
			if in.TotalAmount != nil {
				return fmt.Errorf("%w: product order totals are computed from items", domain.ErrValidation)
			}
			if in.Items != nil {
				if o.Items, err = s.replaceItems(ctx, tx, o, *in.Items); err != nil {
					return err
				}
			}
			subtotal = domain.ItemsSubtotal(o.Items)
		case domain.OrderTypeCustom:
			if in.Items != nil {
				return fmt.Errorf("%w: custom orders cannot carry items", domain.ErrValidation)
			}
			if in.TotalAmount != nil {
				subtotal = *in.TotalAmount
			}
		}
		if err := o.ApplyTotals(subtotal, shipping); err != nil {
			return err
		}
		o.UpdatedAt = s.clock()

		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return s.recordEvent(ctx, tx, EventOrderUpdated, o, "")
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("update order: %w", err)
	}

	s.invalidate(ctx, order.ID)
	s.logger(ctx).Info("order updated",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Bool("items_replaced", in.Items != nil),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}

func (s *OrderService) replaceItems(
	ctx context.Context,
	tx repository.Tx,
	order *domain.Order,
	inputs []ItemInput) ([]domain.OrderItem, error) {

	items, err := s.buildItems(ctx, tx, order.ID, inputs, heldQuantities(order.Items))
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteOrderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	if err := tx.InsertOrderItems(ctx, items); err != nil {
		return nil, err
	}
	if err := applyStockChanges(ctx, tx, order.Items, items); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteOrder hard-deletes an order. Stock still held by a product order is released first.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "OrderService.DeleteOrder",
		trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderStatusCancelled && o.Type.AffectsStock() {
			if err := releaseItems(ctx, tx, o.Items); err != nil {
				return err
			}
		}
		if err := tx.DeleteOrderItems(ctx, o.ID); err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, o.ID); err != nil {
			return err
		}
		order = o
		return s.recordEvent(ctx, tx, EventOrderDeleted, o, "")
	})
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("delete order: %w", err)
	}

	s.invalidate(ctx, orderID)
	s.logger(ctx).Info("order deleted",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)))
	return nil
}
