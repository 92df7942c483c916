package models

import "time"

// Webhook outcome labels used for counters. Duplicate and rejected are
// tracked separately from fresh transitions so replayed deliveries never
// inflate the confirmed count.
const (
	OutcomeCounterConfirmed = "confirmed"
	OutcomeCounterFailed    = "failed"
	OutcomeCounterRefunded  = "refunded"
	OutcomeCounterDuplicate = "duplicate"
	OutcomeCounterRejected  = "rejected"
)

// PaymentStat is the flushed-to-DB form of the Redis outcome counters,
// one row per (event slug, outcome).
type PaymentStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventSlug string    `gorm:"type:varchar(64);not null;index:ux_payment_stats_scope,unique,priority:1" json:"event_slug"`
	Outcome   string    `gorm:"type:varchar(16);not null;index:ux_payment_stats_scope,unique,priority:2" json:"outcome"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
