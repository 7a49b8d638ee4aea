package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/paralex-app/backend/internal/dto"
	"github.com/paralex-app/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidEmail = errors.New("a valid email address is required")

type WaitlistService struct {
	db *gorm.DB
}

func NewWaitlistService(db *gorm.DB) *WaitlistService {
	return &WaitlistService{db: db}
}

// Join adds an email to the waitlist. Signing up twice is acknowledged
// without a duplicate row.
func (s *WaitlistService) Join(req *dto.WaitlistRequest) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return false, ErrInvalidEmail
	}

	entry := models.WaitlistEntry{
		ID:     uuid.New(),
		Email:  email,
		Name:   strings.TrimSpace(req.Name),
		Source: strings.TrimSpace(req.Source),
	}
	tx := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&entry)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Count is used by the admin dashboard.
func (s *WaitlistService) Count() (int64, error) {
	var count int64
	err := s.db.Model(&models.WaitlistEntry{}).Count(&count).Error
	return count, err
}
