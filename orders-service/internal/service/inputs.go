package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

// maxQuantity is the largest quantity the INTEGER stock and item columns hold.
const maxQuantity = math.MaxInt32

// ItemInput is one requested order line. UnitPrice overrides the catalog price when set.
type ItemInput struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPrice      *decimal.Decimal
	RequestedColor string
}

type CreateOrderInput struct {
	CustomerID           uuid.UUID
	OrderType            domain.OrderType
	DeliveryAddress      domain.Address
	CustomDescription    string
	Items                []ItemInput
	OriginalShippingCost decimal.Decimal
	ShippingDiscount     decimal.Decimal
	// TotalAmount is the quoted amount of a CUSTOM order, before shipping.
	TotalAmount *decimal.Decimal
	Notes       string
}

type UpdateOrderStatusInput struct {
	OrderID uuid.UUID
	Status  domain.OrderStatus
	Notes   *string
}

// ShippingInput carries a partial shipping change; nil fields keep the stored value.
type ShippingInput struct {
	OriginalCost *decimal.Decimal
	Discount     *decimal.Decimal
}

// UpdateOrderInput edits an order in place. A nil field is left as stored; a non-nil Items
// replaces every line of the order.
type UpdateOrderInput struct {
	OrderID         uuid.UUID
	DeliveryAddress *domain.Address
	Shipping        *ShippingInput
	Items           *[]ItemInput
	TotalAmount     *decimal.Decimal
	Notes           *string
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: product orders require at least one item", domain.ErrValidation)
	}
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: item %d: product id is required", domain.ErrValidation, i)
		}
		if item.Quantity <= 0 || item.Quantity > maxQuantity {
			return fmt.Errorf("%w: item %d: quantity must be between 1 and %d", domain.ErrValidation, i, maxQuantity)
		}
		if item.UnitPrice != nil {
			if err := domain.ValidateAmount(fmt.Sprintf("item %d: unit price", i), *item.UnitPrice); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCustomAmount(amount *decimal.Decimal) error {
	if amount == nil {
		return nil
	}
	return domain.ValidateAmount("total amount", *amount)
}

// Validate checks the request shape. It runs before any database access.
func (in CreateOrderInput) Validate() error {
	if in.CustomerID == uuid.Nil {
		return fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	}
	if err := in.DeliveryAddress.Validate(); err != nil {
		return err
	}
	shipping := domain.Shipping{OriginalCost: in.OriginalShippingCost, Discount: in.ShippingDiscount}
	if err := shipping.Validate(); err != nil {
		return err
	}

	switch in.OrderType {
	case domain.OrderTypeProduct:
		if in.TotalAmount != nil {
			return fmt.Errorf("%w: product order totals are computed from items", domain.ErrValidation)
		}
		return validateItems(in.Items)
	case domain.OrderTypeCustom:
		if strings.TrimSpace(in.CustomDescription) == "" {
			return fmt.Errorf("%w: custom orders require a description", domain.ErrValidation)
		}
		if len(in.Items) > 0 {
			return fmt.Errorf("%w: custom orders cannot carry items", domain.ErrValidation)
		}
		return validateCustomAmount(in.TotalAmount)
	default:
		return fmt.Errorf("%w: unknown order type %q", domain.ErrValidation, in.OrderType)
	}
}

func (in UpdateOrderInput) Validate() error {
	if in.DeliveryAddress != nil {
		if err := in.DeliveryAddress.Validate(); err != nil {
			return err
		}
	}
	if in.Shipping != nil {
		if in.Shipping.OriginalCost != nil {
			if err := domain.ValidateAmount("original shipping cost", *in.Shipping.OriginalCost); err != nil {
				return err
			}
		}
		if in.Shipping.Discount != nil {
			if err := domain.ValidateAmount("shipping discount", *in.Shipping.Discount); err != nil {
				return err
			}
		}
	}
	if in.Items != nil {
		if err := validateItems(*in.Items); err != nil {
			return err
		}
	}
	return validateCustomAmount(in.TotalAmount)
}
