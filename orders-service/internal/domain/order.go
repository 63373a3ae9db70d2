package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeProduct OrderType = "PRODUCT"
	OrderTypeCustom  OrderType = "CUSTOM"
)

// ParseOrderType accepts the lower-case wire form ("product", "custom") as well as the stored form.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderTypeProduct:
		return OrderTypeProduct, nil
	case OrderTypeCustom:
		return OrderTypeCustom, nil
	}
	return "", fmt.Errorf("%w: unknown order type %q", ErrValidation, s)
}

// AffectsStock reports whether the order's items hold stock in the ledger.
func (t OrderType) AffectsStock() bool {
	return t == OrderTypeProduct
}

type Address struct {
	AddressLine string `json:"address_line"`
	District    string `json:"district,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code,omitempty"`
}

func (a Address) Validate() error {
	if strings.TrimSpace(a.AddressLine) == "" {
		return fmt.Errorf("%w: delivery address line is required", ErrValidation)
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("%w: delivery city is required", ErrValidation)
	}
	return nil
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Snapshot  ProductSnapshot `json:"product_snapshot"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineTotal is the sale price captured in the snapshot times the quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Snapshot.UnitPriceAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CustomerSummary is the customer data rendered alongside an order.
type CustomerSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
}

type Order struct {
	ID                   uuid.UUID        `json:"id"`
	OrderNumber          string           `json:"order_number"`
	CustomerID           uuid.UUID        `json:"customer_id"`
	Customer             *CustomerSummary `json:"customer,omitempty"`
	Type                 OrderType        `json:"order_type"`
	Status               OrderStatus      `json:"status"`
	DeliveryAddress      Address          `json:"delivery_address"`
	CustomDescription    string           `json:"custom_description,omitempty"`
	Notes                string           `json:"notes,omitempty"`
	Subtotal             decimal.Decimal  `json:"subtotal"`
	OriginalShippingCost decimal.Decimal  `json:"original_shipping_cost"`
	ShippingDiscount     decimal.Decimal  `json:"shipping_discount"`
	ShippingCost         decimal.Decimal  `json:"shipping_cost"`
	TotalAmount          decimal.Decimal  `json:"total_amount"`
	Items                []OrderItem      `json:"items"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
	ConfirmedAt          *time.Time       `json:"confirmed_at,omitempty"`
	CompletedAt          *time.Time       `json:"completed_at,omitempty"`
	CancelledAt          *time.Time       `json:"cancelled_at,omitempty"`
}

// maxAmount is the first value that no longer fits the NUMERIC(12,2) money columns.
var maxAmount = decimal.New(1, 10)

// ValidateAmount checks that a money input can be stored exactly: not negative, at most two
// decimal places and below maxAmount.
func ValidateAmount(field string, amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
	case !amount.Equal(amount.Round(2)):
		return fmt.Errorf("%w: %s %s has more than two decimal places", ErrValidation, field, amount)
	case amount.GreaterThanOrEqual(maxAmount):
		return fmt.Errorf("%w: %s %s is too large", ErrValidation, field, amount)
	}
	return nil
}

// Shipping holds the caller-supplied shipping charge and the discount applied to it.
type Shipping struct {
	OriginalCost decimal.Decimal
	Discount     decimal.Decimal
}

func (s Shipping) Validate() error {
	if err := ValidateAmount("original shipping cost", s.OriginalCost); err != nil {
		return err
	}
	if err := ValidateAmount("shipping discount", s.Discount); err != nil {
		return err
	}
	if s.Discount.GreaterThan(s.OriginalCost) {
		return fmt.Errorf("%w: shipping discount %s exceeds original shipping cost %s",
			ErrValidation, s.Discount.StringFixed(2), s.OriginalCost.StringFixed(2))
	}
	return nil
}

// Cost is max(0, original - discount).
func (s Shipping) Cost() decimal.Decimal {
	return decimal.Max(decimal.Zero, s.OriginalCost.Sub(s.Discount))
}

// ItemsSubtotal sums the line totals of the given items.
func ItemsSubtotal(items []OrderItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// ApplyTotals recomputes shipping and total amount from the subtotal and shipping input. It
// fails when the total no longer fits the money columns.
func (o *Order) ApplyTotals(subtotal decimal.Decimal, shipping Shipping) error {
	o.Subtotal = subtotal
	o.OriginalShippingCost = shipping.OriginalCost
	o.ShippingDiscount = shipping.Discount
	o.ShippingCost = shipping.Cost()
	o.TotalAmount = subtotal.Add(o.ShippingCost)
	return ValidateAmount("total amount", o.TotalAmount)
}

func (o *Order) Shipping() Shipping {
	return Shipping{OriginalCost: o.OriginalShippingCost, Discount: o.ShippingDiscount}
}

// Clone returns a deep copy of o, so callers sharing one loaded order cannot see each other's
// changes.
func (o *Order) Clone() *Order {
	cp := *o
	if o.Customer != nil {
		customer := *o.Customer
		cp.Customer = &customer
	}
	if o.Items != nil {
		cp.Items = make([]OrderItem, len(o.Items))
		for i, item := range o.Items {
			item.Snapshot = item.Snapshot.Clone()
			cp.Items[i] = item
		}
	}
	cp.ConfirmedAt = cloneTime(o.ConfirmedAt)
	cp.CompletedAt = cloneTime(o.CompletedAt)
	cp.CancelledAt = cloneTime(o.CancelledAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TransitionTo moves the order into next, stamping the lifecycle timestamps.
// It does not touch stock; releasing items on cancellation is the caller's job.
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !CanTransitionTo(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	switch next {
	case OrderStatusConfirmed:
		o.ConfirmedAt = &now
	case OrderStatusDelivered:
		o.CompletedAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}
