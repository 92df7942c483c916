package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// GatewaySetting holds the Recurrente credentials and webhook secret for one
// scope. EventSlug is empty for organizer-level rows; event-level rows take
// precedence when both exist. Sandbox and API URLs are explicit per-scope
// configuration, never process-wide state.
type GatewaySetting struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrganizerSlug    string    `gorm:"type:varchar(64);not null;index:ux_gateway_settings_scope,unique,priority:1" json:"organizer_slug" validate:"required,max=64"`
	EventSlug        string    `gorm:"type:varchar(64);not null;default:'';index:ux_gateway_settings_scope,unique,priority:2" json:"event_slug" validate:"max=64"`
	APIKey           string    `gorm:"type:varchar(191);not null" json:"api_key" validate:"required"`
	APISecret        string    `gorm:"type:text;not null" json:"-" validate:"required"`
	WebhookSecret    string    `gorm:"type:text" json:"-"`
	Sandbox          bool      `gorm:"default:false" json:"sandbox"`
	LenientWebhooks  bool      `gorm:"default:false" json:"lenient_webhooks"`
	ProductionAPIURL string    `gorm:"type:varchar(255);not null;default:'https://app.recurrente.com/api'" json:"production_api_url" validate:"required,url"`
	SandboxAPIURL    string    `gorm:"type:varchar(255);not null;default:'https://app.recurrente.com/api'" json:"sandbox_api_url" validate:"required,url"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// APIBaseURL returns the base URL matching the configured mode.
func (s *GatewaySetting) APIBaseURL() string {
	if s.Sandbox {
		return s.SandboxAPIURL
	}
	return s.ProductionAPIURL
}

var gatewaySettingValidator = validator.New()

// Validate checks the setting before persistence.
func (s *GatewaySetting) Validate() error {
	return gatewaySettingValidator.Struct(s)
}
