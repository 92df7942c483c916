package models

import "time"

// Event is a single ticketed event. Slugs are unique per organizer, so all
// payment queries must carry both slugs to avoid cross-event collisions.
type Event struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrganizerID uint      `gorm:"not null;index:ux_events_organizer_slug,unique,priority:1" json:"organizer_id"`
	Slug        string    `gorm:"type:varchar(64);not null;index:ux_events_organizer_slug,unique,priority:2" json:"slug"`
	Name        string    `gorm:"type:varchar(200);not null" json:"name"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'GTQ'" json:"currency"`
	TestMode    bool      `gorm:"default:false" json:"test_mode"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Organizer Organizer `gorm:"foreignKey:OrganizerID" json:"-"`
}
