package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks available stock per product variant. Available is
// only ever changed through guarded reserve/release updates and never goes
// negative.
type InventoryRecord struct {
	VariantID uuid.UUID `gorm:"type:uuid;primaryKey" json:"variant_id"`
	Available int       `gorm:"not null" json:"available"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InventoryRecord) TableName() string { return "inventory_records" }

// SetStockRequest is the admin payload for seeding or correcting stock.
type SetStockRequest struct {
	Available *int `json:"available" binding:"required,gte=0"`
}
