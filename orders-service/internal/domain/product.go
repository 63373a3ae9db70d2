package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogProduct is the catalog's view of a product together with the taxonomy rows the
// snapshot builder copies. Only StockQuantity is ever written by this service.
type CatalogProduct struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
	IsDeleted     bool
	Capacity      *SnapshotCapacity
	Colors        []SnapshotColor
	Categories    []SnapshotCategory
	ImageURLs     []string // ordered by sort_order
}

// Purchasable reports whether new order lines may reference the product.
func (p *CatalogProduct) Purchasable() bool {
	return p.IsActive && !p.IsDeleted
}

// StockAdjustment is the administrative operation applied to a product's stock counter.
type StockAdjustment string

const (
	StockSet      StockAdjustment = "set"
	StockAdd      StockAdjustment = "add"
	StockSubtract StockAdjustment = "subtract"
)
