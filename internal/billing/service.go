package billing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paralex-app/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStoreUnavailable marks transient account-store failures. It is the one
// error class the HTTP layer answers with a 5xx so the provider redelivers.
var ErrStoreUnavailable = errors.New("account store unavailable")

type OutcomeStatus string

const (
	OutcomeProcessed  OutcomeStatus = "processed"
	OutcomeDuplicate  OutcomeStatus = "duplicate"
	OutcomeIgnored    OutcomeStatus = "ignored"
	OutcomeUnresolved OutcomeStatus = "unresolved_account"
	OutcomeStale      OutcomeStatus = "stale_discarded"
	OutcomeRejected   OutcomeStatus = "rejected_transition"
)

// Outcome describes how an acknowledged event was handled. Every outcome maps
// to a 200 response; only errors returned alongside a nil outcome do not.
type Outcome struct {
	Status    OutcomeStatus
	EventID   string
	EventType string
	Note      string
}

// Service reconciles provider webhook events into local subscription state.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Process runs one webhook delivery through parse → idempotency guard →
// reconciliation. The raw body must already have passed signature
// verification. Returns ErrMalformedPayload for undecodable bodies and
// ErrStoreUnavailable when the mutation should be retried by the provider;
// every other condition is acknowledged with an Outcome.
func (s *Service) Process(raw []byte, signatureValid bool) (*Outcome, error) {
	ev, err := ParseEvent(raw)
	if err != nil {
		return nil, err
	}

	eventID := ev.ID
	if eventID == "" {
		eventID = FallbackEventID(raw)
	}

	created, err := s.repo.TryMarkEventProcessed(&models.WebhookEvent{
		ProviderEventID: eventID,
		EventType:       ev.Type,
		Payload:         datatypes.JSON(raw),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !created {
		// Providers redeliver on timeout or ambiguous ack; a second
		// delivery of the same logical event is a no-op.
		return &Outcome{Status: OutcomeDuplicate, EventID: eventID, EventType: ev.Type}, nil
	}

	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCanceled, EventSubscriptionRevoked:
		return s.handleSubscription(ev, eventID)
	case EventOrderCreated:
		return s.handleOrder(ev, eventID)
	case EventCheckoutCreated, EventCheckoutUpdated:
		return s.finish(ev, eventID, OutcomeIgnored, "checkout acknowledged, no account mutation")
	default:
		slog.Info("ignoring unrecognized webhook event type", "event_id", eventID, "event_type", ev.Type)
		return s.finish(ev, eventID, OutcomeIgnored, "unknown event type")
	}
}

func (s *Service) handleSubscription(ev *Event, eventID string) (*Outcome, error) {
	data, err := ev.Subscription()
	if err != nil {
		s.release(eventID)
		return nil, err
	}

	user, err := s.resolveUser(data.Metadata.UserID, data.Customer.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A payment must never be silently lost, but the provider must
			// still get its ack; this is a business-process failure, not a
			// protocol one.
			slog.Error("webhook subscription event could not be resolved to an account",
				"event_id", eventID,
				"event_type", ev.Type,
				"provider_subscription_id", data.ID,
				"metadata_user_id", data.Metadata.UserID,
				"customer_email", data.Customer.Email,
			)
			return s.finish(ev, eventID, OutcomeUnresolved, "no account matched metadata.user_id or customer email")
		}
		s.release(eventID)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	existing, err := s.repo.GetSubscriptionByProviderID(data.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.release(eventID)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		existing = nil
	}

	eventTime := ev.Time(s.now())
	if existing != nil && eventTime.Before(existing.LastEventAt) {
		// Last writer wins by event time, not receipt time: a late-arriving
		// older event must not overwrite newer state.
		return s.finish(ev, eventID, OutcomeStale, "older than recorded subscription state")
	}

	fromTier := TierFree
	if existing != nil {
		fromTier = Tier(existing.Tier)
	}

	status := strings.ToLower(strings.TrimSpace(data.Status))
	var toTier Tier
	var cancelAtPeriodEnd bool
	periodEnd := data.CurrentPeriodEnd
	var note string

	switch ev.Type {
	case EventSubscriptionCreated:
		if status == "" {
			status = StatusActive
		}
		toTier = tierForStatus(status)
		cancelAtPeriodEnd = data.CancelAtPeriodEnd
		note = "subscription created"
	case EventSubscriptionUpdated:
		if status == "" {
			status = StatusActive
		}
		toTier = tierForStatus(status)
		if periodEnd == nil && existing != nil {
			periodEnd = existing.CurrentPeriodEnd
		}
		cancelAtPeriodEnd = data.CancelAtPeriodEnd || data.CanceledAt != nil
		if toTier == TierPro && cancelAtPeriodEnd {
			note = "cancellation scheduled, paid access retained until period end"
		} else {
			note = "subscription updated"
		}
	case EventSubscriptionCanceled:
		toTier = TierFree
		status = StatusCanceled
		if periodEnd == nil && existing != nil {
			periodEnd = existing.CurrentPeriodEnd
		}
		note = "subscription canceled"
	case EventSubscriptionRevoked:
		toTier = TierFree
		status = StatusRevoked
		note = "subscription revoked after failed payment"
	}

	if err := validateTransition(fromTier, toTier, ev.Type); err != nil {
		slog.Error("webhook event rejected by tier state machine",
			"event_id", eventID,
			"event_type", ev.Type,
			"provider_subscription_id", data.ID,
			"error", err,
		)
		return s.finish(ev, eventID, OutcomeRejected, err.Error())
	}

	sub := existing
	if sub == nil {
		sub = &models.Subscription{ProviderSubscriptionID: data.ID}
	}
	sub.UserID = user.ID
	if data.Customer.ID != "" {
		sub.ProviderCustomerID = data.Customer.ID
	}
	sub.Tier = string(toTier)
	sub.Status = status
	sub.CurrentPeriodEnd = periodEnd
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd
	sub.LastEventAt = eventTime
	sub.AuditNote = note
	sub.RawPayload = datatypes.JSON(ev.Data)

	if err := s.repo.UpsertSubscription(sub); err != nil {
		s.release(eventID)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.repo.SetUserTier(user.ID, toTier); err != nil {
		s.release(eventID)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return s.finish(ev, eventID, OutcomeProcessed, note)
}

// handleOrder records one-time purchases for revenue tracking. Orders never
// mutate the tier.
func (s *Service) handleOrder(ev *Event, eventID string) (*Outcome, error) {
	data, err := ev.Order()
	if err != nil {
		s.release(eventID)
		return nil, err
	}

	if _, err := s.resolveUser(data.Metadata.UserID, data.Customer.Email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("webhook order could not be resolved to an account",
				"event_id", eventID,
				"order_id", data.ID,
				"customer_email", data.Customer.Email,
			)
			return s.finish(ev, eventID, OutcomeUnresolved, "order recorded without a matching account")
		}
		s.release(eventID)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return s.finish(ev, eventID, OutcomeProcessed, "order recorded")
}

// resolveUser identifies the account to mutate: metadata.user_id first, then
// the customer email.
func (s *Service) resolveUser(metadataUserID, email string) (*models.User, error) {
	if metadataUserID != "" {
		if id, err := uuid.Parse(metadataUserID); err == nil {
			user, err := s.repo.GetUserByID(id)
			if err == nil {
				return user, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
	}
	if email != "" {
		return s.repo.GetUserByEmail(email)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *Service) finish(ev *Event, eventID string, status OutcomeStatus, note string) (*Outcome, error) {
	if err := s.repo.FinishEvent(eventID, note); err != nil {
		// The mutation (if any) is durable and the ledger row exists, so the
		// missing note is not worth a provider retry.
		slog.Warn("failed to record webhook outcome", "event_id", eventID, "error", err)
	}
	return &Outcome{Status: status, EventID: eventID, EventType: ev.Type, Note: note}, nil
}

func (s *Service) release(eventID string) {
	if err := s.repo.ReleaseEvent(eventID); err != nil {
		slog.Error("failed to release webhook idempotency mark", "event_id", eventID, "error", err)
	}
}
