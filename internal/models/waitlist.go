package models

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a marketing-site signup collected before launch.
type WaitlistEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Source    string    `gorm:"size:100" json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
