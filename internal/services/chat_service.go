package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paralex-app/backend/internal/billing"
	"github.com/paralex-app/backend/internal/dto"
	"github.com/paralex-app/backend/internal/models"
	"github.com/paralex-app/backend/internal/plans"
	"gorm.io/gorm"
)

var (
	ErrQuotaExceeded        = errors.New("daily message limit reached, upgrade to keep chatting")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message is required")
	ErrEmptyDocument        = errors.New("document text is required")
)

const chatSystemPrompt = "You are Paralex, an assistant that helps people understand legal documents. " +
	"Explain clauses in plain language, point out obligations, deadlines and risks, and quote the relevant passage when you reference one. " +
	"You provide general information, not legal advice; say so when the user asks for a legal opinion. " +
	"Answer in Markdown."

const analyzeSystemPrompt = "You are Paralex, a contract review assistant. " +
	"Summarize the document, list the parties and their obligations, flag unusual or one-sided clauses, and note missing protections. " +
	"Quote the passages you flag. Answer in Markdown with sections."

const (
	historyWindow       = 20
	documentExcerptSize = 12000
)

type ChatService struct {
	db      *gorm.DB
	client  *ModelClient
	catalog *plans.Registry
}

func NewChatService(db *gorm.DB, client *ModelClient, catalog *plans.Registry) *ChatService {
	return &ChatService{db: db, client: client, catalog: catalog}
}

// SendMessage runs one dashboard chat turn: quota check, persist the user
// message, call the model with the conversation window, persist the reply.
func (s *ChatService) SendMessage(ctx context.Context, userID uuid.UUID, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.checkQuota(userID, time.Now()); err != nil {
		return nil, err
	}

	conv, err := s.resolveConversation(userID, req)
	if err != nil {
		return nil, err
	}

	userMsg := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           models.RoleUser,
		Content:        message,
	}
	if err := s.db.Create(&userMsg).Error; err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	var history []models.Message
	if err := s.db.Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").
		Limit(historyWindow).
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	prompt := make([]ModelMessage, 0, len(history)+2)
	prompt = append(prompt, ModelMessage{Role: "system", Content: chatSystemPrompt})
	if doc := strings.TrimSpace(req.DocumentText); doc != "" {
		prompt = append(prompt, ModelMessage{
			Role:    "system",
			Content: "The user is asking about this document (" + req.DocumentName + "):\n\n" + excerpt(doc),
		})
	}
	for i := len(history) - 1; i >= 0; i-- {
		prompt = append(prompt, ModelMessage{Role: history[i].Role, Content: history[i].Content})
	}

	reply, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	assistantMsg := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           models.RoleAssistant,
		Content:        reply,
	}
	if err := s.db.Create(&assistantMsg).Error; err != nil {
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}
	s.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update("updated_at", time.Now())

	return &dto.ChatResponse{ConversationID: conv.ID, Reply: reply}, nil
}

// AnalyzeDocument runs a one-shot review of uploaded contract text.
func (s *ChatService) AnalyzeDocument(ctx context.Context, userID uuid.UUID, req *dto.AnalyzeRequest) (*dto.AnalyzeResponse, error) {
	doc := strings.TrimSpace(req.DocumentText)
	if doc == "" {
		return nil, ErrEmptyDocument
	}

	if err := s.checkQuota(userID, time.Now()); err != nil {
		return nil, err
	}

	analysis, err := s.client.Complete(ctx, []ModelMessage{
		{Role: "system", Content: analyzeSystemPrompt},
		{Role: "user", Content: "Review this document (" + req.DocumentName + "):\n\n" + excerpt(doc)},
	})
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	return &dto.AnalyzeResponse{DocumentName: req.DocumentName, Analysis: analysis}, nil
}

func (s *ChatService) ListConversations(userID uuid.UUID) ([]dto.ConversationResponse, error) {
	var convs []models.Conversation
	if err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(50).
		Find(&convs).Error; err != nil {
		return nil, err
	}

	result := make([]dto.ConversationResponse, 0, len(convs))
	for _, c := range convs {
		result = append(result, dto.ConversationResponse{
			ID:           c.ID,
			Title:        c.Title,
			DocumentName: c.DocumentName,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return result, nil
}

func (s *ChatService) GetConversation(userID, conversationID uuid.UUID) (*dto.ConversationResponse, []dto.MessageResponse, error) {
	var conv models.Conversation
	if err := s.db.Where("id = ? AND user_id = ?", conversationID, userID).First(&conv).Error; err != nil {
		return nil, nil, ErrConversationNotFound
	}

	var msgs []models.Message
	if err := s.db.Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, nil, err
	}

	out := make([]dto.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.MessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return &dto.ConversationResponse{
		ID:           conv.ID,
		Title:        conv.Title,
		DocumentName: conv.DocumentName,
		UpdatedAt:    conv.UpdatedAt,
	}, out, nil
}

// Account returns the profile the dashboard header renders, with the grace
// period evaluated lazily so a lapsed cancellation reads as free even if the
// provider never sends another event.
func (s *ChatService) Account(userID uuid.UUID) (*dto.AccountResponse, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	tier, sub, err := s.effectiveTier(userID, time.Now())
	if err != nil {
		return nil, err
	}

	resp := &dto.AccountResponse{ID: user.ID, Email: user.Email, Tier: string(tier)}
	if sub != nil {
		resp.PeriodEnd = sub.CurrentPeriodEnd
		resp.CancelPending = sub.CancelAtPeriodEnd && tier == billing.TierPro
	}
	return resp, nil
}

func (s *ChatService) checkQuota(userID uuid.UUID, now time.Time) error {
	tier, _, err := s.effectiveTier(userID, now)
	if err != nil {
		return err
	}

	limit := s.catalog.DailyMessageLimit(string(tier))
	if limit <= 0 {
		return nil
	}

	var count int64
	today := now.Truncate(24 * time.Hour)
	if err := s.db.Model(&models.Message{}).
		Where("user_id = ? AND role = ? AND created_at >= ?", userID, models.RoleUser, today).
		Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(limit) {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *ChatService) effectiveTier(userID uuid.UUID, now time.Time) (billing.Tier, *models.Subscription, error) {
	var sub models.Subscription
	err := s.db.Where("user_id = ?", userID).Order("last_event_at DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var user models.User
			if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
				return billing.TierFree, nil, err
			}
			return billing.Tier(user.Tier), nil, nil
		}
		return billing.TierFree, nil, err
	}
	return billing.EffectiveTier(&sub, now), &sub, nil
}

func (s *ChatService) resolveConversation(userID uuid.UUID, req *dto.ChatRequest) (*models.Conversation, error) {
	if req.ConversationID != nil {
		var conv models.Conversation
		if err := s.db.Where("id = ? AND user_id = ?", *req.ConversationID, userID).First(&conv).Error; err != nil {
			return nil, ErrConversationNotFound
		}
		return &conv, nil
	}

	conv := models.Conversation{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        conversationTitle(req.Message),
		DocumentName: strings.TrimSpace(req.DocumentName),
	}
	if err := s.db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func conversationTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if len(title) > 60 {
		title = title[:57] + "..."
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}

func excerpt(doc string) string {
	if len(doc) > documentExcerptSize {
		return doc[:documentExcerptSize] + "\n\n[document truncated]"
	}
	return doc
}
