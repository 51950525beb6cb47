package models

import "time"

const (
	PurchaseStatusActive   = "active"
	PurchaseStatusRefunded = "refunded"
	PurchaseStatusRevoked  = "revoked"
)

const (
	PaymentMethodFree   = "free"
	PaymentMethodStripe = "stripe"
)

// Purchase is an entitlement record asserting "user owns product". One row
// shape backs all three purchase tables (video_purchases, course_purchases,
// prompt_purchases); repositories select the table via
// ProductType.PurchasesTable. Rows are created by the free checkout path or
// the payment webhook and are never updated or deleted by the purchase flow.
//
// The composite unique index on (user_id, product_id, status) is what
// actually enforces the one-active-entitlement invariant; inserts go through
// ON CONFLICT DO NOTHING and a conflict is reported as "already purchased"
// rather than an error.
type Purchase struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index:ux_purchases_user_product_status,unique,priority:1" json:"user_id"`
	ProductID       uint      `gorm:"not null;index:ux_purchases_user_product_status,unique,priority:2" json:"product_id"`
	PricePaid       int64     `gorm:"not null;default:0" json:"price_paid"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	Status          string    `gorm:"type:varchar(20);not null;default:'active';index:ux_purchases_user_product_status,unique,priority:3" json:"status"`
	PaymentMethod   string    `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentIntentID string    `gorm:"type:varchar(191);index" json:"payment_intent_id,omitempty"`
	TransactionID   string    `gorm:"type:varchar(191)" json:"transaction_id,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the entitlement currently grants access.
func (p *Purchase) IsActive() bool {
	return p.Status == PurchaseStatusActive
}
