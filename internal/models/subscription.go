package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Subscription mirrors the billing provider's subscription state for one
// account. Tier is the derived, authoritative field the product reads;
// Status is kept for diagnostics. Rows are never deleted — cancellations
// downgrade the tier and the record stays for audit.
type Subscription struct {
	ID                     uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                 uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ProviderSubscriptionID string         `gorm:"size:255;not null;uniqueIndex" json:"provider_subscription_id"`
	ProviderCustomerID     string         `gorm:"size:255;index" json:"provider_customer_id"`
	Tier                   string         `gorm:"size:20;not null;default:'free'" json:"tier"`
	Status                 string         `gorm:"size:50;not null;default:'incomplete'" json:"status"`
	CurrentPeriodEnd       *time.Time     `json:"current_period_end"`
	CancelAtPeriodEnd      bool           `gorm:"default:false" json:"cancel_at_period_end"`
	LastEventAt            time.Time      `gorm:"not null" json:"last_event_at"`
	AuditNote              string         `gorm:"size:255" json:"audit_note"`
	RawPayload             datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	User                   User           `gorm:"foreignKey:UserID" json:"-"`
}
