package domain

import "errors"

var (
	ErrValidation              = errors.New("validation failed")
	ErrProductNotFound         = errors.New("product not found")
	ErrProductInactive         = errors.New("product is not purchasable")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrOrderNotEditable        = errors.New("order is not editable in its current status")
	ErrOrderNotFound           = errors.New("order not found")
	ErrCustomerNotFound        = errors.New("customer not found")
)
