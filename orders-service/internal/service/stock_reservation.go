package service

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
	"github.com/fjod/go_backoffice/orders-service/internal/repository"
)

// byProductID returns items ordered by product id. Every stock pass (reserve, release and the
// net pass of an edit) walks product rows in this order, so two transactions never wait on each
// other in a cycle.
func byProductID(items []domain.OrderItem) []domain.OrderItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b domain.OrderItem) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})
	return sorted
}

func reserveItems(ctx context.Context, tx repository.Tx, items []domain.OrderItem) error {
	for _, item := range byProductID(items) {
		if err := tx.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func releaseItems(ctx context.Context, tx repository.Tx, items []domain.OrderItem) error {
	for _, item := range byProductID(items) {
		if err := tx.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("release stock for product %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// applyStockChanges moves stock from the held lines to the wanted lines in one pass ordered by
// product id. Only the net difference per product is reserved or released, so an edit locks each
// product row once and in the same order as creation and cancellation.
func applyStockChanges(ctx context.Context, tx repository.Tx, held, wanted []domain.OrderItem) error {
	delta := make(map[uuid.UUID]int, len(held)+len(wanted))
	for _, item := range wanted {
		delta[item.ProductID] += item.Quantity
	}
	for _, item := range held {
		delta[item.ProductID] -= item.Quantity
	}

	ids := slices.SortedFunc(maps.Keys(delta), func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	for _, id := range ids {
		switch qty := delta[id]; {
		case qty > 0:
			if err := tx.ReserveStock(ctx, id, qty); err != nil {
				return err
			}
		case qty < 0:
			if err := tx.ReleaseStock(ctx, id, -qty); err != nil {
				return fmt.Errorf("release stock for product %s: %w", id, err)
			}
		}
	}
	return nil
}

func heldQuantities(items []domain.OrderItem) map[uuid.UUID]int {
	held := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		held[item.ProductID] += item.Quantity
	}
	return held
}

// buildItems validates the requested lines against the catalog and snapshots them. held is the
// stock the order already holds per product and counts as available. The stock comparison here
// only fails fast; the guarded reservation is the authoritative check.
func (s *OrderService) buildItems(
	ctx context.Context,
	tx repository.Tx,
	orderID uuid.UUID,
	inputs []ItemInput,
	held map[uuid.UUID]int) ([]domain.OrderItem, error) {

	products := make(map[uuid.UUID]*domain.CatalogProduct, len(inputs))
	requested := make(map[uuid.UUID]int, len(inputs))
	items := make([]domain.OrderItem, 0, len(inputs))

	for _, in := range inputs {
		product, ok := products[in.ProductID]
		if !ok {
			var err error
			product, err = tx.GetCatalogProduct(ctx, in.ProductID)
			if err != nil {
				return nil, err
			}
			products[in.ProductID] = product
		}
		if !product.Purchasable() {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductInactive, in.ProductID)
		}

		requested[in.ProductID] += in.Quantity
		if available := product.StockQuantity + held[in.ProductID]; available < requested[in.ProductID] {
			return nil, fmt.Errorf("%w: product %s has %d, requested %d",
				domain.ErrInsufficientStock, in.ProductID, available, requested[in.ProductID])
		}

		items = append(items, domain.OrderItem{
			ID:        s.newID(),
			OrderID:   orderID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Snapshot:  s.snapshots.Build(product, in.UnitPrice, in.RequestedColor),
			CreatedAt: s.clock(),
		})
	}
	return items, nil
}
