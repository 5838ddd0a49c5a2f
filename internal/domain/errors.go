package domain

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrLockUnavailable        = errors.New("product is busy, retry")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrHoldNotActive          = errors.New("hold is not active")
	ErrHoldExpired            = errors.New("hold has expired")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrInvalidID              = errors.New("invalid id")
)
