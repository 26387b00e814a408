package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository persists orders, their items and the append-only status
// history ledger.
type OrderRepository interface {
	// CreateWithReservation decrements inventory for every order item and
	// persists the order, items and initial history entry in one transaction.
	// Any failure rolls the whole unit back; inventory is left unchanged.
	CreateWithReservation(ctx context.Context, order *models.Order) error

	// TransitionStatus is a compare-and-set on the order's status: it only
	// succeeds when the stored status still equals from. The history entry is
	// appended, and inventory is released when to is a releasing status, all
	// in the same transaction. A lost race returns ErrConcurrencyConflict.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, changedBy, notes string) error

	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
}

// GormOrderRepository implements OrderRepository using GORM on Postgres.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// CreateWithReservation reserves stock in ascending variant order so that
// concurrent checkouts touching overlapping variants lock rows in the same
// sequence and cannot deadlock.
func (r *GormOrderRepository) CreateWithReservation(ctx context.Context, order *models.Order) error {
	items := make([]models.OrderItem, len(order.OrderItems))
	copy(items, order.OrderItems)
	sort.Slice(items, func(i, j int) bool {
		return items[i].VariantID.String() < items[j].VariantID.String()
	})

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inventory := NewGormInventoryRepository(tx)
		for _, item := range items {
			if err := inventory.ReserveAndCommit(ctx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		// Items and the initial history entry ride along as associations.
		return tx.Create(order).Error
	})
}

func (r *GormOrderRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, changedBy, notes string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, from).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Order
			if err := tx.First(&current, "id = ?", orderID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
				}
				return err
			}
			return fmt.Errorf("order %s is %s, not %s: %w",
				orderID, current.Status, from, ErrConcurrencyConflict)
		}

		fromCopy := from
		entry := models.OrderStatusHistory{
			OrderID:    orderID,
			FromStatus: &fromCopy,
			ToStatus:   to,
			ChangedBy:  changedBy,
			Notes:      notes,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		if to.ReleasesInventory() {
			var items []models.OrderItem
			if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
				return err
			}
			inventory := NewGormInventoryRepository(tx)
			for _, item := range items {
				if err := inventory.Release(ctx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByIDAndUserID(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("OrderItems").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("OrderItems").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
