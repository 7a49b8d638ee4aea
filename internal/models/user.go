package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a Paralex account. Tier mirrors the reconciled subscription state
// so product checks never need a join against the subscriptions table.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Role      string         `gorm:"size:20;default:'user'" json:"role"`
	Tier      string         `gorm:"size:20;not null;default:'free'" json:"tier"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
