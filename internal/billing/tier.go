package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/paralex-app/backend/internal/models"
)

// Tier is the product-facing subscription level. Reconciliation only
// distinguishes subscribed from not; the pricing catalog may show more.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Provider subscription statuses mirrored into Subscription.Status for
// diagnostics. Tier is the derived field the rest of the product reads.
const (
	StatusActive     = "active"
	StatusTrialing   = "trialing"
	StatusCanceled   = "canceled"
	StatusRevoked    = "revoked"
	StatusIncomplete = "incomplete"
)

func entitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusActive, StatusTrialing:
		return true
	default:
		return false
	}
}

func tierForStatus(status string) Tier {
	if entitlingStatus(status) {
		return TierPro
	}
	return TierFree
}

// validateTransition enforces the tier state machine: free→pro only via a
// created/updated event carrying an entitling status, pro→free only via
// canceled/revoked or an updated event with a terminal status. A handler
// producing any other transition is a bug and must not be applied.
func validateTransition(from, to Tier, eventType string) error {
	if from == to {
		return nil
	}
	switch {
	case from == TierFree && to == TierPro:
		if eventType == EventSubscriptionCreated || eventType == EventSubscriptionUpdated {
			return nil
		}
	case from == TierPro && to == TierFree:
		switch eventType {
		case EventSubscriptionCanceled, EventSubscriptionRevoked, EventSubscriptionUpdated, EventSubscriptionCreated:
			return nil
		}
	}
	return fmt.Errorf("illegal tier transition %s -> %s via %s", from, to, eventType)
}

// EffectiveTier evaluates the grace period lazily: a pro subscription with a
// scheduled cancellation keeps paid access until its period end, after which
// it reads as free even if no further webhook ever arrives.
func EffectiveTier(sub *models.Subscription, now time.Time) Tier {
	if sub == nil || sub.Tier != string(TierPro) {
		return TierFree
	}
	if sub.CancelAtPeriodEnd && sub.CurrentPeriodEnd != nil && now.After(*sub.CurrentPeriodEnd) {
		return TierFree
	}
	return TierPro
}
