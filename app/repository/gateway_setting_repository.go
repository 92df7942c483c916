package repository

import (
	"errors"
	"fmt"

	"github.com/boletera/boletera/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gatewaySettingRepository implements the GatewaySettingRepository interface
type gatewaySettingRepository struct {
	db *gorm.DB
}

// NewGatewaySettingRepository creates a new gateway setting repository instance
func NewGatewaySettingRepository(db *gorm.DB) GatewaySettingRepository {
	return &gatewaySettingRepository{db: db}
}

// Resolve returns the settings for a scope. An event-level row wins over the
// organizer-level fallback (empty event_slug).
func (r *gatewaySettingRepository) Resolve(organizerSlug, eventSlug string) (*models.GatewaySetting, error) {
	var setting models.GatewaySetting
	err := r.db.
		Where("organizer_slug = ? AND event_slug IN ?", organizerSlug, []string{eventSlug, ""}).
		Order("event_slug DESC").
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no gateway settings for %s/%s", organizerSlug, eventSlug)
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Save validates and upserts the settings row for its scope.
func (r *gatewaySettingRepository) Save(setting *models.GatewaySetting) error {
	if err := setting.Validate(); err != nil {
		return err
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "organizer_slug"},
			{Name: "event_slug"},
		},
		UpdateAll: true,
	}).Create(setting).Error
}
