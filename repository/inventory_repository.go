package repository

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRepository is the inventory ledger: available stock per variant,
// mutated only through guarded reserve/release updates.
type InventoryRepository interface {
	Get(ctx context.Context, variantID uuid.UUID) (*models.InventoryRecord, error)
	Set(ctx context.Context, variantID uuid.UUID, available int) (*models.InventoryRecord, error)

	// ReserveAndCommit atomically checks available >= quantity and decrements.
	// Returns ErrInsufficientStock (no change applied) when the check fails.
	ReserveAndCommit(ctx context.Context, variantID uuid.UUID, quantity int) error

	// Release hands quantity back to the ledger. The caller guarantees at most
	// one release per committed reservation.
	Release(ctx context.Context, variantID uuid.UUID, quantity int) error
}

// GormInventoryRepository implements InventoryRepository on Postgres. It can
// be constructed over a transaction handle so that reservations join a larger
// unit of work.
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

func (r *GormInventoryRepository) Get(ctx context.Context, variantID uuid.UUID) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	if err := r.db.WithContext(ctx).First(&rec, "variant_id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("inventory for variant %s: %w", variantID, ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

// Set upserts the available count for a variant (admin seeding/correction).
func (r *GormInventoryRepository) Set(ctx context.Context, variantID uuid.UUID, available int) (*models.InventoryRecord, error) {
	rec := models.InventoryRecord{VariantID: variantID, Available: available}

	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Update("available", available)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// ReserveAndCommit relies on a single guarded UPDATE: Postgres row locking
// makes the check-and-decrement linearizable per variant, so two concurrent
// checkouts can never both take the last unit.
func (r *GormInventoryRepository) ReserveAndCommit(ctx context.Context, variantID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ? AND available >= ?", variantID, quantity).
		Update("available", gorm.Expr("available - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var rec models.InventoryRecord
		if err := r.db.WithContext(ctx).First(&rec, "variant_id = ?", variantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("inventory for variant %s: %w", variantID, ErrNotFound)
			}
			return err
		}
		return fmt.Errorf("variant %s: requested %d, available %d: %w",
			variantID, quantity, rec.Available, ErrInsufficientStock)
	}
	return nil
}

func (r *GormInventoryRepository) Release(ctx context.Context, variantID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Update("available", gorm.Expr("available + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("inventory for variant %s: %w", variantID, ErrNotFound)
	}
	return nil
}
