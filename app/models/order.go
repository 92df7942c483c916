package models

import "time"

// Order status values. Boletera does not own the ticketing lifecycle; it
// only flips orders between pending and paid/refunded as payment outcomes
// arrive.
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
	OrderStatusRefunded = "refunded"
	OrderStatusExpired  = "expired"
)

// Order is one ticket purchase. The secret authenticates buyer-facing
// status and refresh requests, pretix-style.
type Order struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EventID    uint       `gorm:"not null;index:ux_orders_event_code,unique,priority:1" json:"event_id"`
	Code       string     `gorm:"type:varchar(16);not null;index:ux_orders_event_code,unique,priority:2" json:"code"`
	Secret     string     `gorm:"type:varchar(64);not null" json:"-"`
	Status     string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Email      string     `gorm:"type:varchar(200);default:''" json:"email"`
	TotalCents int64      `gorm:"not null" json:"total_cents"`
	Currency   string     `gorm:"type:varchar(3);not null" json:"currency"`
	PaidAt     *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Event    Event     `gorm:"foreignKey:EventID" json:"-"`
	Payments []Payment `gorm:"foreignKey:OrderID" json:"-"`
}
