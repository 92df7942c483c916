package models

import "time"

// Refund states. Transit means Recurrente accepted the refund but has not
// reported it settled yet; the webhook or the poller completes it.
const (
	RefundStateCreated = "created"
	RefundStateTransit = "transit"
	RefundStateDone    = "done"
	RefundStateFailed  = "failed"
)

// Refund records one refund attempt against a confirmed payment.
type Refund struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PaymentID   uint      `gorm:"not null;index" json:"payment_id"`
	State       string    `gorm:"type:varchar(16);not null;default:'created';index" json:"state"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	InfoJSON    string    `gorm:"type:longtext" json:"info_json"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Payment Payment `gorm:"foreignKey:PaymentID" json:"-"`
}
