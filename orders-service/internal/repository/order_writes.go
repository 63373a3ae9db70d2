package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

const pqUniqueViolation = "23505"

func (t *txRepository) InsertOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, order_number, customer_id, order_type, status,
	              address_line, district, city, postal_code, custom_description, notes,
	              subtotal, original_shipping_cost, shipping_discount, shipping_cost, total_amount,
	              created_at, updated_at, confirmed_at, completed_at, cancelled_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := t.tx.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.CustomerID,
		order.Type,
		order.Status,
		order.DeliveryAddress.AddressLine,
		order.DeliveryAddress.District,
		order.DeliveryAddress.City,
		order.DeliveryAddress.PostalCode,
		order.CustomDescription,
		order.Notes,
		order.Subtotal,
		order.OriginalShippingCost,
		order.ShippingDiscount,
		order.ShippingCost,
		order.TotalAmount,
		order.CreatedAt,
		order.UpdatedAt,
		order.ConfirmedAt,
		order.CompletedAt,
		order.CancelledAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *txRepository) InsertOrderItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `INSERT INTO order_items (id, order_id, line_no, product_id, quantity, product_snapshot, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare order item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		snapshotJSON, err := json.Marshal(item.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal product snapshot: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.OrderID,
			i+1,
			item.ProductID,
			item.Quantity,
			snapshotJSON,
			item.CreatedAt); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

// UpdateOrder writes the mutable order columns. Items are replaced separately.
func (t *txRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	query := `UPDATE orders SET
	              status = $2,
	              address_line = $3, district = $4, city = $5, postal_code = $6,
	              notes = $7,
	              subtotal = $8, original_shipping_cost = $9, shipping_discount = $10,
	              shipping_cost = $11, total_amount = $12,
	              updated_at = $13, confirmed_at = $14, completed_at = $15, cancelled_at = $16
	          WHERE id = $1`

	res, err := t.tx.ExecContext(ctx, query,
		order.ID,
		order.Status,
		order.DeliveryAddress.AddressLine,
		order.DeliveryAddress.District,
		order.DeliveryAddress.City,
		order.DeliveryAddress.PostalCode,
		order.Notes,
		order.Subtotal,
		order.OriginalShippingCost,
		order.ShippingDiscount,
		order.ShippingCost,
		order.TotalAmount,
		order.UpdatedAt,
		order.ConfirmedAt,
		order.CompletedAt,
		order.CancelledAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return expectOneRow(res, domain.ErrOrderNotFound)
}

func (t *txRepository) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	return nil
}

func (t *txRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectOneRow(res, domain.ErrOrderNotFound)
}
