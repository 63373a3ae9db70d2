package service

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

// SnapshotBuilder assembles the immutable product copy stored on each order item.
type SnapshotBuilder struct {
	clock func() time.Time
}

func NewSnapshotBuilder(clock func() time.Time) *SnapshotBuilder {
	if clock == nil {
		clock = time.Now
	}
	return &SnapshotBuilder{clock: clock}
}

// Build copies product into a snapshot. The product must have been read through the order's
// transaction. The copy shares no memory with product.
func (b *SnapshotBuilder) Build(
	product *domain.CatalogProduct,
	requestedUnitPrice *decimal.Decimal,
	requestedColor string) domain.ProductSnapshot {

	price := product.Price
	if requestedUnitPrice != nil {
		price = *requestedUnitPrice
	}

	snapshot := domain.ProductSnapshot{
		ID:              product.ID,
		Name:            product.Name,
		Slug:            product.Slug,
		Description:     product.Description,
		UnitPriceAtSale: price,
		RequestedColor:  requestedColor,
		Colors:          slices.Clone(product.Colors),
		Categories:      slices.Clone(product.Categories),
		CapturedAt:      b.clock().UTC(),
	}
	if snapshot.Colors == nil {
		snapshot.Colors = []domain.SnapshotColor{}
	}
	if snapshot.Categories == nil {
		snapshot.Categories = []domain.SnapshotCategory{}
	}
	if product.Capacity != nil {
		capacity := *product.Capacity
		snapshot.Capacity = &capacity
	}
	if len(product.ImageURLs) > 0 {
		snapshot.PrimaryImage = &domain.SnapshotImage{URL: product.ImageURLs[0]}
	}
	return snapshot
}
