package repository

import (
	"errors"

	"github.com/boletera/boletera/app/models"
	"gorm.io/gorm"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetBySlug(organizerSlug, eventSlug string) (*models.Event, error) {
	var event models.Event
	err := r.db.Preload("Organizer").
		Joins("JOIN organizers ON organizers.id = events.organizer_id").
		Where("organizers.slug = ? AND events.slug = ?", organizerSlug, eventSlug).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) Exists(organizerSlug, eventSlug string) (bool, error) {
	_, err := r.GetBySlug(organizerSlug, eventSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *eventRepository) Create(event *models.Event) error {
	return r.db.Create(event).Error
}
