package models

import "time"

const (
	CheckoutAttemptInitiated = "initiated"
	CheckoutAttemptSuccess   = "success"
	CheckoutAttemptFailed    = "failed"
	CheckoutAttemptCancelled = "cancelled"
)

// CheckoutAttempt is an append-only audit row for checkout activity. Writing
// it is advisory; a failed insert must never abort the purchase itself.
type CheckoutAttempt struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       uint        `gorm:"not null;index" json:"user_id"`
	ProductID    uint        `gorm:"not null;index" json:"product_id"`
	ProductType  ProductType `gorm:"type:varchar(10);not null" json:"product_type"`
	Status       string      `gorm:"type:varchar(20);not null;index" json:"status"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
}
