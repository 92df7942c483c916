package models

import (
	"encoding/json"
	"time"
)

// Payment provider constants.
const (
	PaymentProviderRecurrente = "recurrente"
)

// Payment lifecycle states. Confirmed, failed, canceled and refunded are
// terminal: a later duplicate notification must never move a payment out of
// them. The single permitted terminal-to-terminal edge is
// confirmed -> refunded, which represents refunding a settled charge.
const (
	PaymentStateCreated   = "created"
	PaymentStatePending   = "pending"
	PaymentStateConfirmed = "confirmed"
	PaymentStateFailed    = "failed"
	PaymentStateCanceled  = "canceled"
	PaymentStateRefunded  = "refunded"
)

// Payment is one attempt to collect money for an order. Rows are never
// deleted, only state-transitioned; the info blob accumulates provider
// metadata (checkout id, payment id, card and receipt fields) for audit.
type Payment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderID     uint      `gorm:"not null;index" json:"order_id"`
	Provider    string    `gorm:"type:varchar(20);not null;index:idx_payments_provider_state,priority:1" json:"provider"`
	State       string    `gorm:"type:varchar(16);not null;default:'created';index:idx_payments_provider_state,priority:2" json:"state"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	InfoJSON    string    `gorm:"type:longtext" json:"info_json"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

// IsTerminalPaymentState reports whether no further transition is expected
// for state.
func IsTerminalPaymentState(state string) bool {
	switch state {
	case PaymentStateConfirmed, PaymentStateFailed, PaymentStateCanceled, PaymentStateRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the payment is in a terminal state.
func (p *Payment) IsTerminal() bool {
	return IsTerminalPaymentState(p.State)
}

// InfoData decodes the provider info blob. A missing, corrupt or null blob
// yields an empty map so callers can merge unconditionally.
func (p *Payment) InfoData() map[string]interface{} {
	info := map[string]interface{}{}
	if p.InfoJSON == "" {
		return info
	}
	if err := json.Unmarshal([]byte(p.InfoJSON), &info); err != nil {
		return map[string]interface{}{}
	}
	// A literal "null" blob unmarshals to a nil map.
	if info == nil {
		return map[string]interface{}{}
	}
	return info
}

// SetInfoData encodes and stores the provider info blob.
func (p *Payment) SetInfoData(info map[string]interface{}) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	p.InfoJSON = string(raw)
	return nil
}

// MergeInfo merges fields into the info blob, overwriting existing keys.
func (p *Payment) MergeInfo(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	info := p.InfoData()
	for k, v := range fields {
		info[k] = v
	}
	return p.SetInfoData(info)
}

// InfoString returns a string field from the info blob, or "".
func (p *Payment) InfoString(key string) string {
	if v, ok := p.InfoData()[key].(string); ok {
		return v
	}
	return ""
}
