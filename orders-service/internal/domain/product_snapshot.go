package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SnapshotCapacity struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	VolumeMl int       `json:"volumeMl"`
}

type SnapshotColor struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	HexCode string    `json:"hexCode"`
}

type SnapshotCategory struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type SnapshotImage struct {
	URL string `json:"url"`
}

// ProductSnapshot is the product as it was sold. It is written once with the order item
// and is the only record consulted when rendering order history.
type ProductSnapshot struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Slug            string             `json:"slug"`
	Description     string             `json:"description"`
	UnitPriceAtSale decimal.Decimal    `json:"unitPriceAtSale"`
	RequestedColor  string             `json:"requestedColor,omitempty"`
	Capacity        *SnapshotCapacity  `json:"capacity,omitempty"`
	Colors          []SnapshotColor    `json:"colors"`
	Categories      []SnapshotCategory `json:"categories"`
	PrimaryImage    *SnapshotImage     `json:"primaryImage,omitempty"`
	CapturedAt      time.Time          `json:"capturedAt"`
}

// Clone returns a copy that shares no slices or pointers with s.
func (s ProductSnapshot) Clone() ProductSnapshot {
	cp := s
	cp.Colors = slices.Clone(s.Colors)
	cp.Categories = slices.Clone(s.Categories)
	if s.Capacity != nil {
		capacity := *s.Capacity
		cp.Capacity = &capacity
	}
	if s.PrimaryImage != nil {
		image := *s.PrimaryImage
		cp.PrimaryImage = &image
	}
	return cp
}
