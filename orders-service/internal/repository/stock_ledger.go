package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/pkg/logger"
)

// ReserveStock decrements stock with a single guarded UPDATE so that concurrent reservations
// of the last units serialise on the row lock and the loser sees zero affected rows.
func (t *txRepository) ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", domain.ErrValidation)
	}

	query := `UPDATE products
	          SET stock_quantity = stock_quantity - $2, updated_at = NOW()
	          WHERE id = $1 AND stock_quantity >= $2 AND is_active AND NOT is_deleted`
	res, err := t.tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	return t.classifyFailedDecrement(ctx, productID, quantity, true)
}

// ReleaseStock returns quantity to the product. A product row that no longer exists is
// skipped: order items keep only a soft reference to the catalog.
func (t *txRepository) ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", domain.ErrValidation)
	}

	query := `UPDATE products
	          SET stock_quantity = stock_quantity + $2, updated_at = NOW()
	          WHERE id = $1`
	res, err := t.tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release stock rows affected: %w", err)
	}
	if n == 0 {
		logger.FromContext(ctx).Warn("stock release skipped, product row missing",
			zap.String("product_id", productID.String()),
			zap.Int("quantity", quantity))
	}
	return nil
}

func (t *txRepository) AdjustStock(ctx context.Context, productID uuid.UUID, op domain.StockAdjustment, quantity int) (int, error) {
	var query string
	switch op {
	case domain.StockSet:
		if quantity < 0 {
			return 0, fmt.Errorf("%w: stock cannot be set below zero", ErrInvalidAdjustment)
		}
		query = `UPDATE products SET stock_quantity = $2, updated_at = NOW()
		         WHERE id = $1 RETURNING stock_quantity`
	case domain.StockAdd:
		if quantity <= 0 {
			return 0, fmt.Errorf("%w: add quantity must be positive", ErrInvalidAdjustment)
		}
		query = `UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		         WHERE id = $1 RETURNING stock_quantity`
	case domain.StockSubtract:
		if quantity <= 0 {
			return 0, fmt.Errorf("%w: subtract quantity must be positive", ErrInvalidAdjustment)
		}
		query = `UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		         WHERE id = $1 AND stock_quantity >= $2 RETURNING stock_quantity`
	default:
		return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidAdjustment, op)
	}

	var stock int
	err := t.tx.QueryRowContext(ctx, query, productID, quantity).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, t.classifyFailedDecrement(ctx, productID, quantity, false)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}
	return stock, nil
}

// classifyFailedDecrement explains why a guarded decrement matched no row.
func (t *txRepository) classifyFailedDecrement(ctx context.Context, productID uuid.UUID, quantity int, requirePurchasable bool) error {
	var (
		stock     int
		isActive  bool
		isDeleted bool
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT stock_quantity, is_active, is_deleted FROM products WHERE id = $1`, productID).
		Scan(&stock, &isActive, &isDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return fmt.Errorf("read product stock: %w", err)
	}
	if requirePurchasable && (!isActive || isDeleted) {
		return fmt.Errorf("%w: %s", domain.ErrProductInactive, productID)
	}
	return fmt.Errorf("%w: product %s has %d, requested %d", domain.ErrInsufficientStock, productID, stock, quantity)
}
