package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/paralex-app/backend/internal/dto"
	"github.com/paralex-app/backend/internal/models"
	"gorm.io/gorm"
)

// RemoteConfigHandler serves feature flags and announcements the web client
// reads at startup.
type RemoteConfigHandler struct {
	db *gorm.DB
}

func NewRemoteConfigHandler(db *gorm.DB) *RemoteConfigHandler {
	return &RemoteConfigHandler{db: db}
}

// GetConfig returns the full flag map (public).
func (h *RemoteConfigHandler) GetConfig(c *fiber.Ctx) error {
	var configs []models.RemoteConfig
	if err := h.db.Find(&configs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to fetch configuration",
		})
	}

	result := make(map[string]interface{})
	for _, cfg := range configs {
		result[cfg.Key] = decodeConfigValue(cfg)
	}

	return c.JSON(result)
}

// SetConfigKey sets or updates a config key (admin only).
func (h *RemoteConfigHandler) SetConfigKey(c *fiber.Ctx) error {
	key := c.Params("key", "")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Key parameter is required",
		})
	}

	var payload struct {
		Value string `json:"value"`
		Type  string `json:"type"` // string, bool, int, json
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Invalid request body",
		})
	}

	if payload.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Value is required",
		})
	}

	if payload.Type == "" {
		payload.Type = "string"
	}

	var config models.RemoteConfig
	err := h.db.Where("key = ?", key).First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		config = models.RemoteConfig{
			ID:        uuid.New(),
			Key:       key,
			Value:     payload.Value,
			Type:      payload.Type,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := h.db.Create(&config).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Failed to create config",
			})
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to query config",
		})
	} else {
		config.Value = payload.Value
		config.Type = payload.Type
		config.UpdatedAt = time.Now()
		if err := h.db.Save(&config).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Failed to update config",
			})
		}
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Config updated successfully",
		"config": fiber.Map{
			"key":   config.Key,
			"value": config.Value,
			"type":  config.Type,
		},
	})
}

// DeleteConfigKey deletes a config key (admin only).
func (h *RemoteConfigHandler) DeleteConfigKey(c *fiber.Ctx) error {
	key := c.Params("key", "")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Key parameter is required",
		})
	}

	result := h.db.Where("key = ?", key).Delete(&models.RemoteConfig{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Failed to delete config",
		})
	}

	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Config not found",
		})
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Config deleted successfully",
	})
}

// SeedDefaults creates the flags the web client expects if they are missing.
func (h *RemoteConfigHandler) SeedDefaults() error {
	defaults := []models.RemoteConfig{
		{Key: "maintenance_mode", Value: "false", Type: "bool"},
		{Key: "announcement_title", Value: "", Type: "string"},
		{Key: "announcement_message", Value: "", Type: "string"},
		{Key: "document_upload_enabled", Value: "true", Type: "bool"},
		{Key: "max_upload_size_mb", Value: "10", Type: "int"},
	}

	for _, def := range defaults {
		var existing models.RemoteConfig
		err := h.db.Where("key = ?", def.Key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			def.ID = uuid.New()
			if err := h.db.Create(&def).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func decodeConfigValue(cfg models.RemoteConfig) interface{} {
	switch cfg.Type {
	case "bool":
		v, _ := strconv.ParseBool(cfg.Value)
		return v
	case "int":
		v, _ := strconv.Atoi(cfg.Value)
		return v
	case "json":
		var v interface{}
		json.Unmarshal([]byte(cfg.Value), &v)
		return v
	default:
		return cfg.Value
	}
}
