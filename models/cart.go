package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of a user's cart. Items are unique per variant; adding
// the same variant again increments the quantity.
type CartItem struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// Cart is the mutable per-user item collection, stored as a single JSON value
// in Redis. Item order is insertion order.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Find returns a pointer to the line for variantID, or nil.
func (c *Cart) Find(variantID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return &c.Items[i]
		}
	}
	return nil
}

// Remove drops the line for variantID if present and reports whether it was.
func (c *Cart) Remove(variantID uuid.UUID) bool {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// AddCartItemRequest is the payload for POST /cart/items.
type AddCartItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest is the payload for PUT /cart/items/:variant_id.
// Quantity zero removes the line.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

// CartItemView is a cart line enriched with a live (advisory) catalog lookup
// for display. Checkout re-validates independently.
type CartItemView struct {
	VariantID  uuid.UUID       `json:"variant_id"`
	Quantity   int             `json:"quantity"`
	Active     bool            `json:"active"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// CartView is the enriched representation returned by GET /cart.
type CartView struct {
	UserID      string          `json:"user_id"`
	Items       []CartItemView  `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
