package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the idempotency ledger: one row per logical provider event.
// The unique index on ProviderEventID is what makes processing exactly-once —
// inserting into it is the atomic check-and-set that serializes concurrent
// deliveries of the same event across server instances.
type WebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ProviderEventID string         `gorm:"size:255;not null;uniqueIndex" json:"provider_event_id"`
	EventType       string         `gorm:"size:100;not null;index" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	SignatureValid  bool           `gorm:"default:false" json:"signature_valid"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingNote  string         `gorm:"size:255" json:"processing_note"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
