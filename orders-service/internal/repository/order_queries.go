package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

const orderColumns = `o.id, o.order_number, o.customer_id, o.order_type, o.status,
	o.address_line, o.district, o.city, o.postal_code, o.custom_description, o.notes,
	o.subtotal, o.original_shipping_cost, o.shipping_discount, o.shipping_cost, o.total_amount,
	o.created_at, o.updated_at, o.confirmed_at, o.completed_at, o.cancelled_at,
	c.id, c.name, c.email, c.phone`

const defaultListLimit = 50

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order         domain.Order
		customerID    uuid.NullUUID
		customerName  sql.NullString
		customerEmail sql.NullString
		customerPhone sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerID,
		&order.Type,
		&order.Status,
		&order.DeliveryAddress.AddressLine,
		&order.DeliveryAddress.District,
		&order.DeliveryAddress.City,
		&order.DeliveryAddress.PostalCode,
		&order.CustomDescription,
		&order.Notes,
		&order.Subtotal,
		&order.OriginalShippingCost,
		&order.ShippingDiscount,
		&order.ShippingCost,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ConfirmedAt,
		&order.CompletedAt,
		&order.CancelledAt,
		&customerID,
		&customerName,
		&customerEmail,
		&customerPhone,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		order.Customer = &domain.CustomerSummary{
			ID:    customerID.UUID,
			Name:  customerName.String,
			Email: customerEmail.String,
			Phone: customerPhone.String,
		}
	}
	order.Items = []domain.OrderItem{}
	return &order, nil
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
	          FROM orders o LEFT JOIN customers c ON c.id = o.customer_id
	          WHERE o.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF o`
	}

	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := attachItems(ctx, q, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func listOrders(ctx context.Context, q querier, filter OrderFilter) ([]*domain.Order, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("o.customer_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders o LEFT JOIN customers c ON c.id = o.customer_id`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&sb, " ORDER BY o.created_at DESC, o.order_number DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with one query.
func attachItems(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
	}

	query := `SELECT id, order_id, product_id, quantity, product_snapshot, created_at
	          FROM order_items WHERE order_id = ANY($1::uuid[])
	          ORDER BY order_id, line_no`
	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item         domain.OrderItem
			snapshotJSON []byte
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &snapshotJSON, &item.CreatedAt); err != nil {
			return fmt.Errorf("scan order item row: %w", err)
		}
		if err := json.Unmarshal(snapshotJSON, &item.Snapshot); err != nil {
			return fmt.Errorf("unmarshal product snapshot: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}
