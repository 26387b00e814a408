package services

import "errors"

// Domain error conditions surfaced to the HTTP layer. Controllers map these
// to status codes with errors.Is; services wrap them with detail.
var (
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrVariantUnavailable = errors.New("variant unavailable")
	ErrItemNotFound       = errors.New("item not in cart")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("invalid status transition")
)
