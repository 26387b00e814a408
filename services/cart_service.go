package services

import (
	"context"
	"fmt"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService owns the cart lifecycle: add, update, remove, clear and the
// enriched listing. It never touches inventory; stock is only committed at
// checkout.
type CartService struct {
	repo    repository.CartRepository
	catalog Catalog
	logger  *zap.Logger
}

func NewCartService(repo repository.CartRepository, catalog Catalog, logger *zap.Logger) *CartService {
	return &CartService{repo: repo, catalog: catalog, logger: logger}
}

// AddItem adds quantity units of a variant to the user's cart, creating the
// cart on first use. Adding a variant already in the cart increments its
// line instead of creating a duplicate.
func (s *CartService) AddItem(ctx context.Context, userID string, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}

	info, err := s.catalog.VariantInfo(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if !info.Active {
		return nil, fmt.Errorf("variant %s (%s): %w", variantID, info.Name, ErrVariantUnavailable)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID}
	}

	if line := cart.Find(variantID); line != nil {
		line.Quantity += quantity
	} else {
		cart.Items = append(cart.Items, models.CartItem{VariantID: variantID, Quantity: quantity})
	}

	if err := s.repo.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItem replaces the quantity of an existing cart line. Quantity zero
// removes the line. A variant not in the cart is ErrItemNotFound.
func (s *CartService) UpdateItem(ctx context.Context, userID string, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity %d: %w", quantity, ErrInvalidQuantity)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("variant %s: %w", variantID, ErrItemNotFound)
	}

	line := cart.Find(variantID)
	if line == nil {
		return nil, fmt.Errorf("variant %s: %w", variantID, ErrItemNotFound)
	}

	if quantity == 0 {
		cart.Remove(variantID)
	} else {
		line.Quantity = quantity
	}

	if err := s.repo.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem deletes a cart line. Removing an absent variant is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID string, variantID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &models.Cart{UserID: userID}, nil
	}

	if cart.Remove(variantID) {
		if err := s.repo.SaveCart(ctx, cart); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

// Clear empties the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.repo.DeleteCart(ctx, userID)
}

// List returns the cart enriched with live catalog data. Enrichment is
// advisory: a failed or inactive lookup marks the line inactive with a zero
// price but never blocks the listing.
func (s *CartService) List(ctx context.Context, userID string) (*models.CartView, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: userID}
	}

	view := &models.CartView{
		UserID:      cart.UserID,
		Items:       make([]models.CartItemView, 0, len(cart.Items)),
		TotalAmount: decimal.Zero,
		UpdatedAt:   cart.UpdatedAt,
	}

	for _, item := range cart.Items {
		line := models.CartItemView{
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitPrice:  decimal.Zero,
			TotalPrice: decimal.Zero,
		}

		info, err := s.catalog.VariantInfo(ctx, item.VariantID)
		if err != nil {
			s.logger.Warn("cart enrichment lookup failed",
				zap.String("user_id", userID),
				zap.String("variant_id", item.VariantID.String()),
				zap.Error(err))
		} else if info.Active {
			line.Active = true
			line.UnitPrice = info.Price
			line.TotalPrice = info.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}

		view.Items = append(view.Items, line)
		view.TotalItems += item.Quantity
		view.TotalAmount = view.TotalAmount.Add(line.TotalPrice)
	}

	return view, nil
}
