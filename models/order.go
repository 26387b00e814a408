package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_number"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	OrderItems    []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history,omitempty"`
}

// OrderItem is a line of an order. Unit price is snapshotted from the catalog
// at checkout time; the row is never updated afterwards.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	VariantID  uuid.UUID       `gorm:"type:uuid;not null" json:"variant_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// OrderStatusHistory is the append-only ledger of status transitions. The
// initial entry written at order creation has a nil FromStatus.
type OrderStatusHistory struct {
	ID         uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"order_id"`
	FromStatus *OrderStatus `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus   OrderStatus  `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy  string       `gorm:"type:varchar(128)" json:"changed_by"`
	Notes      string       `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// NewOrderNumber generates a human-readable unique order number,
// e.g. ORD-20260301-9F1C02AB.
func NewOrderNumber() string {
	return "ORD-" + time.Now().UTC().Format("20060102") + "-" +
		strings.ToUpper(uuid.New().String()[:8])
}

// UpdateStatusRequest is the admin payload for a status transition.
type UpdateStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Reason string      `json:"reason"`
}
