package billing

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "subscription.created",
		"occurred_at": "2025-01-05T10:00:00Z",
		"data": {
			"id": "sub_1",
			"status": "active",
			"customer": {"id": "cus_1", "email": "a@x.com"},
			"metadata": {"user_id": "u1"}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != EventSubscriptionCreated {
		t.Fatalf("unexpected envelope: id=%q type=%q", ev.ID, ev.Type)
	}

	data, err := ev.Subscription()
	if err != nil {
		t.Fatalf("unexpected data decode error: %v", err)
	}
	if data.ID != "sub_1" || data.Customer.Email != "a@x.com" || data.Metadata.UserID != "u1" {
		t.Fatalf("unexpected subscription data: %+v", data)
	}
}

func TestParseEventMalformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"id":"evt_1"}`} {
		if _, err := ParseEvent([]byte(raw)); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("ParseEvent(%q) err = %v, want ErrMalformedPayload", raw, err)
		}
	}
}

func TestEventTimeFallsBackToReceiptTime(t *testing.T) {
	received := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	ev, err := ParseEvent([]byte(`{"id":"evt_1","type":"order.created","data":{}}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if got := ev.Time(received); !got.Equal(received) {
		t.Fatalf("expected receipt-time fallback, got %v", got)
	}

	occurred := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	ev.OccurredAt = &occurred
	if got := ev.Time(received); !got.Equal(occurred) {
		t.Fatalf("expected occurred_at to win, got %v", got)
	}
}

func TestFallbackEventID(t *testing.T) {
	a := FallbackEventID([]byte(`{"type":"order.created"}`))
	b := FallbackEventID([]byte(`{"type":"order.created"}`))
	c := FallbackEventID([]byte(`{"type":"order.updated"}`))

	if !strings.HasPrefix(a, "hash:") {
		t.Fatalf("expected hash prefix, got %q", a)
	}
	if a != b {
		t.Fatalf("same payload should produce the same fallback id")
	}
	if a == c {
		t.Fatalf("different payloads should produce different fallback ids")
	}
}
