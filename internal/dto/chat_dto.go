package dto

import (
	"time"

	"github.com/google/uuid"
)

type ChatRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Message        string     `json:"message"`
	DocumentName   string     `json:"document_name,omitempty"`
	DocumentText   string     `json:"document_text,omitempty"`
}

type ChatResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reply          string    `json:"reply"`
}

type AnalyzeRequest struct {
	DocumentName string `json:"document_name"`
	DocumentText string `json:"document_text"`
}

type AnalyzeResponse struct {
	DocumentName string `json:"document_name"`
	Analysis     string `json:"analysis"`
}

type ConversationResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	DocumentName string    `json:"document_name,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountResponse struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Tier          string     `json:"tier"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`
	CancelPending bool       `json:"cancel_pending"`
}
