package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
	"github.com/fjod/go_backoffice/pkg/logger"
)

// StockAdminService is the manual stock correction path used by back-office staff. The order
// pipeline never calls it.
type StockAdminService struct {
	store repository.Store
	log   *zap.Logger
}

func NewStockAdminService(store repository.Store, log *zap.Logger) (*StockAdminService, error) {
	if store == nil {
		return nil, errors.New("stock admin service: store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StockAdminService{store: store, log: log}, nil
}

// AdjustStock applies set, add or subtract to a product and returns the resulting stock.
func (s *StockAdminService) AdjustStock(
	ctx context.Context,
	productID uuid.UUID,
	op domain.StockAdjustment,
	quantity int) (int, error) {

	ctx, span := tracer.Start(ctx, "StockAdminService.AdjustStock",
		trace.WithAttributes(
			attribute.String("product.id", productID.String()),
			attribute.String("stock.operation", string(op)),
			attribute.Int("stock.quantity", quantity)))
	defer span.End()

	if productID == uuid.Nil {
		err := fmt.Errorf("%w: product id is required", domain.ErrValidation)
		recordError(span, err)
		return 0, err
	}
	if quantity > maxQuantity {
		err := fmt.Errorf("%w: quantity must not exceed %d", domain.ErrValidation, maxQuantity)
		recordError(span, err)
		return 0, err
	}

	var stock int
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		stock, err = tx.AdjustStock(ctx, productID, op, quantity)
		return err
	})
	if errors.Is(err, repository.ErrInvalidAdjustment) {
		err = fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	logger.WithTrace(ctx, s.log).Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.String("operation", string(op)),
		zap.Int("quantity", quantity),
		zap.Int("stock", stock))
	return stock, nil
}
