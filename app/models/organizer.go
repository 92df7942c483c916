package models

import "time"

// Organizer is the account that owns events. Boletera only needs the slug
// for scoping payment lookups and the organizer-level gateway settings.
type Organizer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slug      string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"slug"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
