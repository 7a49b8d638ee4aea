package billing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paralex-app/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
	subs    map[string]*models.Subscription
	events  map[string]*models.WebhookEvent
	fail    map[string]error
	upserts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
		subs:    make(map[string]*models.Subscription),
		events:  make(map[string]*models.WebhookEvent),
		fail:    make(map[string]error),
	}
}

func (f *fakeRepo) addUser(email string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: uuid.New(), Email: email, Tier: string(TierFree)}
	f.users[u.ID] = u
	f.byEmail[email] = u.ID
	return u
}

func (f *fakeRepo) GetUserByID(id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["GetUserByID"]; err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["GetUserByEmail"]; err != nil {
		return nil, err
	}
	id, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *f.users[id]
	return &cp, nil
}

func (f *fakeRepo) GetSubscriptionByProviderID(id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["GetSubscriptionByProviderID"]; err != nil {
		return nil, err
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["UpsertSubscription"]; err != nil {
		return err
	}
	f.upserts++
	cp := *sub
	f.subs[sub.ProviderSubscriptionID] = &cp
	return nil
}

func (f *fakeRepo) SetUserTier(userID uuid.UUID, tier Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["SetUserTier"]; err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Tier = string(tier)
	return nil
}

func (f *fakeRepo) TryMarkEventProcessed(event *models.WebhookEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["TryMarkEventProcessed"]; err != nil {
		return false, err
	}
	if _, ok := f.events[event.ProviderEventID]; ok {
		return false, nil
	}
	cp := *event
	f.events[event.ProviderEventID] = &cp
	return true, nil
}

func (f *fakeRepo) FinishEvent(id, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	ev.ProcessedAt = &now
	ev.ProcessingNote = note
	return nil
}

func (f *fakeRepo) ReleaseEvent(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, id)
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func subscriptionEvent(eventID, eventType, subID, email, userID, status, occurredAt string) []byte {
	meta := ""
	if userID != "" {
		meta = fmt.Sprintf(`, "metadata": {"user_id": %q}`, userID)
	}
	occ := ""
	if occurredAt != "" {
		occ = fmt.Sprintf(`, "occurred_at": %q`, occurredAt)
	}
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": %q%s,
		"data": {
			"id": %q,
			"status": %q,
			"current_period_end": "2025-03-01T00:00:00Z",
			"customer": {"id": "cus_9", "email": %q}%s
		}
	}`, eventID, eventType, occ, subID, status, email, meta))
}

func TestProcessNewSubscriber(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)

	out, err := svc.Process(subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", ""), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out.Status)

	sub := repo.subs["sub_1"]
	require.NotNil(t, sub)
	require.Equal(t, string(TierPro), sub.Tier)
	require.Equal(t, StatusActive, sub.Status)
	require.Equal(t, user.ID, sub.UserID)
	require.Equal(t, "cus_9", sub.ProviderCustomerID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), sub.CurrentPeriodEnd.UTC())
	require.Equal(t, string(TierPro), repo.users[user.ID].Tier)
}

func TestProcessRevokedPayment(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)

	_, err := svc.Process(subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "2025-01-01T00:00:00Z"), true)
	require.NoError(t, err)

	// Resolution by email only: no metadata.user_id on the revocation.
	out, err := svc.Process(subscriptionEvent("evt_2", EventSubscriptionRevoked, "sub_1", "a@x.com", "", "", "2025-01-02T00:00:00Z"), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out.Status)

	require.Equal(t, string(TierFree), repo.subs["sub_1"].Tier)
	require.Equal(t, StatusRevoked, repo.subs["sub_1"].Status)
	require.Equal(t, string(TierFree), repo.users[user.ID].Tier)
}

func TestRedeliverySameEventIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)
	payload := subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "")

	first, err := svc.Process(payload, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, first.Status)

	second, err := svc.Process(payload, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, second.Status)

	require.Equal(t, 1, repo.upserts)
	require.Equal(t, string(TierPro), repo.subs["sub_1"].Tier)
	require.Len(t, repo.events, 1)
}

func TestOutOfOrderDeliveryKeepsNewerState(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)

	// Cancellation (event time T2) arrives before creation (event time T1).
	out, err := svc.Process(subscriptionEvent("evt_2", EventSubscriptionCanceled, "sub_1", "a@x.com", user.ID.String(), "", "2025-01-10T00:00:00Z"), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out.Status)

	out, err = svc.Process(subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "2025-01-05T00:00:00Z"), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeStale, out.Status)

	require.Equal(t, string(TierFree), repo.subs["sub_1"].Tier)
	require.Equal(t, StatusCanceled, repo.subs["sub_1"].Status)
	require.Equal(t, string(TierFree), repo.users[user.ID].Tier)
}

func TestDeliveryOrderDoesNotChangeFinalState(t *testing.T) {
	created := func() []byte {
		return subscriptionEvent("evt_c", EventSubscriptionCreated, "sub_1", "a@x.com", "", "active", "2025-01-05T00:00:00Z")
	}
	canceled := func() []byte {
		return subscriptionEvent("evt_x", EventSubscriptionCanceled, "sub_1", "a@x.com", "", "", "2025-01-10T00:00:00Z")
	}

	for name, order := range map[string][][]byte{
		"in_order":     {created(), canceled()},
		"out_of_order": {canceled(), created()},
	} {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepo()
			user := repo.addUser("a@x.com")
			svc := newTestService(repo)
			for _, payload := range order {
				_, err := svc.Process(payload, true)
				require.NoError(t, err)
			}
			require.Equal(t, string(TierFree), repo.subs["sub_1"].Tier)
			require.Equal(t, string(TierFree), repo.users[user.ID].Tier)
		})
	}
}

func TestUnresolvedAccountIsAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	out, err := svc.Process(subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "nobody@x.com", "", "active", ""), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnresolved, out.Status)

	require.Empty(t, repo.subs)
	// Ledger keeps the event so a redelivery does not re-log the failure.
	require.Len(t, repo.events, 1)
	require.NotNil(t, repo.events["evt_1"].ProcessedAt)
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	out, err := svc.Process([]byte(`{"id":"evt_1","type":"benefit.granted","data":{}}`), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, out.Status)
	require.Empty(t, repo.subs)
}

func TestCheckoutEventsAreInformational(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser("a@x.com")
	svc := newTestService(repo)

	out, err := svc.Process([]byte(`{"id":"evt_1","type":"checkout.created","data":{"id":"co_1"}}`), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, out.Status)
	require.Empty(t, repo.subs)
}

func TestMalformedPayload(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.Process([]byte(`{not json`), true)
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = svc.Process([]byte(`{"id":"evt_1","data":{}}`), true)
	require.ErrorIs(t, err, ErrMalformedPayload)

	// Known type with an undecodable data section is malformed too, and must
	// not leave a stuck idempotency mark behind.
	_, err = svc.Process([]byte(`{"id":"evt_2","type":"subscription.created","data":{"status":"active"}}`), true)
	require.ErrorIs(t, err, ErrMalformedPayload)
	require.Empty(t, repo.events)
}

func TestStoreFailureReleasesMarkForRetry(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)
	payload := subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "")

	repo.fail["UpsertSubscription"] = gorm.ErrInvalidDB
	_, err := svc.Process(payload, true)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Empty(t, repo.events, "idempotency mark must be released so redelivery can retry")

	delete(repo.fail, "UpsertSubscription")
	out, err := svc.Process(payload, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out.Status)
	require.Equal(t, string(TierPro), repo.subs["sub_1"].Tier)
}

func TestConcurrentDeliveryProcessesOnce(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)
	payload := subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "")

	const deliveries = 8
	outcomes := make([]OutcomeStatus, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.Process(payload, true)
			require.NoError(t, err)
			outcomes[i] = out.Status
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, status := range outcomes {
		if status == OutcomeProcessed {
			processed++
		} else {
			require.Equal(t, OutcomeDuplicate, status)
		}
	}
	require.Equal(t, 1, processed)
	require.Equal(t, 1, repo.upserts)
}

func TestScheduledCancellationKeepsGracePeriod(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)

	_, err := svc.Process(subscriptionEvent("evt_1", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "2025-01-01T00:00:00Z"), true)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "evt_2",
		"type": "subscription.updated",
		"occurred_at": "2025-01-15T00:00:00Z",
		"data": {
			"id": "sub_1",
			"status": "active",
			"current_period_end": "2025-03-01T00:00:00Z",
			"cancel_at_period_end": true,
			"canceled_at": "2025-01-15T00:00:00Z",
			"customer": {"email": "a@x.com"}
		}
	}`)
	out, err := svc.Process(payload, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out.Status)

	sub := repo.subs["sub_1"]
	require.Equal(t, string(TierPro), sub.Tier, "paid access is retained until period end")
	require.True(t, sub.CancelAtPeriodEnd)

	require.Equal(t, TierPro, EffectiveTier(sub, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, TierFree, EffectiveTier(sub, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestOrderCreatedDoesNotTouchTier(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)

	out, err := svc.Process([]byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "order.created",
		"data": {"id": "ord_1", "amount": 4900, "currency": "usd", "customer": {"email": "a@x.com"}, "metadata": {"user_id": %q}}
	}`, user.ID.String())), true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, out.Status)
	require.Empty(t, repo.subs)
	require.Equal(t, string(TierFree), repo.users[user.ID].Tier)
}

func TestEventWithoutIDUsesPayloadHash(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser("a@x.com")
	svc := newTestService(repo)
	payload := subscriptionEvent("", EventSubscriptionCreated, "sub_1", "a@x.com", user.ID.String(), "active", "")

	first, err := svc.Process(payload, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, first.Status)

	second, err := svc.Process(payload, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, second.Status)
	require.Equal(t, first.EventID, second.EventID)
}
