package repository

import "errors"

// Storage-level error conditions. Services and controllers match these with
// errors.Is; repositories wrap them with the offending identifiers.
var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
