// internal/domain/purchase/entity.go
package purchase

import (
	"time"

	"gorm.io/gorm"
)

// Status represents the purchase status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
)

// IsValid reports whether the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Purchase is an immutable record materialized from one cart line on payment
// completion. Amount freezes the product's unit price at materialization time.
// The composite unique index on (stripe_payment_id, product_id) makes duplicate
// materialization for the same payment impossible: a cart holds at most one
// line per product, so one payment's batch never collides with itself.
type Purchase struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"`
	ProductID       uint           `gorm:"not null;uniqueIndex:idx_purchases_payment_product" json:"product_id"`
	Quantity        int            `gorm:"not null" json:"quantity"`
	Amount          int64          `gorm:"not null" json:"amount"` // unit price snapshot, minor units
	Status          Status         `gorm:"not null;default:'PENDING';size:20" json:"status"`
	StripePaymentID string         `gorm:"not null;size:255;uniqueIndex:idx_purchases_payment_product" json:"stripe_payment_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Purchase) TableName() string {
	return "purchases"
}
