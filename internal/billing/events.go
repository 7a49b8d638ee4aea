package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// Event types Polar delivers. Types outside this set are acknowledged and
// ignored so the provider does not retry them.
const (
	EventCheckoutCreated      = "checkout.created"
	EventCheckoutUpdated      = "checkout.updated"
	EventOrderCreated         = "order.created"
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
	EventSubscriptionRevoked  = "subscription.revoked"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// Event is the provider envelope. Data stays raw until the type is known and
// the matching payload shape can be decoded.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt *time.Time      `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Customer identifies the paying party on the provider side.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Metadata carries the values our checkout flow attached when the session
// was created. UserID is the primary account-resolution key.
type Metadata struct {
	UserID string `json:"user_id"`
}

// SubscriptionData is the payload for all subscription.* event types.
type SubscriptionData struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at"`
	Customer          Customer   `json:"customer"`
	Metadata          Metadata   `json:"metadata"`
}

// OrderData is the payload for order.created (one-time purchases).
type OrderData struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Customer  Customer `json:"customer"`
	Metadata  Metadata `json:"metadata"`
}

// ParseEvent decodes the webhook envelope. The body must already have passed
// signature verification; a decode failure here is a malformed payload, not
// a fault worth retrying.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, ErrMalformedPayload
	}
	if ev.Type == "" {
		return nil, ErrMalformedPayload
	}
	return &ev, nil
}

// Subscription decodes the data section of a subscription.* event.
func (e *Event) Subscription() (*SubscriptionData, error) {
	var data SubscriptionData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, ErrMalformedPayload
	}
	if data.ID == "" {
		return nil, ErrMalformedPayload
	}
	return &data, nil
}

// Order decodes the data section of an order.created event.
func (e *Event) Order() (*OrderData, error) {
	var data OrderData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, ErrMalformedPayload
	}
	return &data, nil
}

// Time returns the event's own notion of when it happened. Delivery order is
// not guaranteed, so this, not receipt order, drives recency comparisons.
// Events without occurred_at fall back to the receipt time.
func (e *Event) Time(receivedAt time.Time) time.Time {
	if e.OccurredAt != nil && !e.OccurredAt.IsZero() {
		return *e.OccurredAt
	}
	return receivedAt
}

// FallbackEventID derives a deterministic dedup key for events delivered
// without an id, so replays of the same body still collapse to one row.
func FallbackEventID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "hash:" + hex.EncodeToString(sum[:])
}
