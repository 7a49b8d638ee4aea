package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/paralex-app/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the account-store contract the reconciliation service needs.
// Lookups return gorm.ErrRecordNotFound when nothing matches; any other
// error is treated as a transient store failure.
type Repository interface {
	GetUserByID(id uuid.UUID) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	SetUserTier(userID uuid.UUID, tier Tier) error

	// TryMarkEventProcessed atomically inserts the event into the ledger.
	// Returns false when the event id is already present. This is a single
	// conditional insert, not a read-then-write, so concurrent deliveries
	// of the same event across server instances serialize on it.
	TryMarkEventProcessed(event *models.WebhookEvent) (bool, error)
	// FinishEvent records the processing outcome on the ledger row.
	FinishEvent(providerEventID, note string) error
	// ReleaseEvent removes the ledger row so the provider's redelivery can
	// reprocess an event whose mutation failed transiently.
	ReleaseEvent(providerEventID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an account-store repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("provider_subscription_id = ?", providerSubscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"provider_customer_id",
			"tier",
			"status",
			"current_period_end",
			"cancel_at_period_end",
			"last_event_at",
			"audit_note",
			"raw_payload",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider_subscription_id = ?", sub.ProviderSubscriptionID).First(sub).Error
}

func (r *gormRepository) SetUserTier(userID uuid.UUID, tier Tier) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("tier", string(tier)).Error
}

func (r *gormRepository) TryMarkEventProcessed(event *models.WebhookEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) FinishEvent(providerEventID, note string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(map[string]interface{}{
			"processed_at":    &now,
			"processing_note": note,
		}).Error
}

func (r *gormRepository) ReleaseEvent(providerEventID string) error {
	return r.db.Where("provider_event_id = ?", providerEventID).
		Delete(&models.WebhookEvent{}).Error
}
