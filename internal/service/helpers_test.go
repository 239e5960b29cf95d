package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/kafka"
	"github.com/Dhoini/seatsync/internal/repository"
	"github.com/Dhoini/seatsync/pkg/logger"
)

const testOrg = "org-1"

var (
	baseTime    = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	periodStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
)

func stripeEvent(t *testing.T, id, eventType, object string) stripe.Event {
	t.Helper()
	raw := fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2024-04-10","created":1750000000,"data":{"object":%s}}`, id, eventType, object)
	var ev stripe.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func subscriptionObject(id, status string, quantity int, metadata map[string]string) string {
	meta, _ := json.Marshal(metadata)
	return fmt.Sprintf(`{
		"id": %q, "object": "subscription", "customer": "cus_1", "status": %q,
		"current_period_start": %d, "current_period_end": %d, "trial_end": %d,
		"metadata": %s,
		"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "quantity": %d, "price": {"id": "price_seat", "object": "price"}}]}
	}`, id, status, periodStart.Unix(), periodEnd.Unix(), periodEnd.Unix(), meta, quantity)
}

func checkoutObject(subID string, metadata map[string]string) string {
	meta, _ := json.Marshal(metadata)
	return fmt.Sprintf(`{"id": "cs_1", "object": "checkout.session", "mode": "subscription", "customer": "cus_1", "subscription": %q, "metadata": %s}`, subID, meta)
}

func invoiceObject(subID string) string {
	if subID == "" {
		return `{"id": "in_1", "object": "invoice", "subscription": null}`
	}
	return fmt.Sprintf(`{"id": "in_1", "object": "invoice", "subscription": %q}`, subID)
}

type fakeFetcher struct {
	mu    sync.Mutex
	subs  map[string]*domain.ProviderSubscription
	err   error
	calls int
}

func (f *fakeFetcher) GetSubscription(_ context.Context, id string) (*domain.ProviderSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such subscription %s", domain.ErrExternalServiceUnavailable, id)
	}
	cp := *sub
	return &cp, nil
}

type recordingProducer struct {
	mu     sync.Mutex
	events []kafka.SeatChangeEvent
}

func (p *recordingProducer) PublishSeatChange(_ context.Context, ev kafka.SeatChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type recordingInvalidator struct {
	mu   sync.Mutex
	orgs []string
}

func (r *recordingInvalidator) InvalidateSlots(_ context.Context, orgID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs = append(r.orgs, orgID)
	return nil
}

// flakyStore fails SyncSubscriptionSlots while failures remain.
type flakyStore struct {
	*repository.InMemoryStore
	failures int
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.InMemoryStore.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(&flakyTx{Tx: tx, store: s})
	})
}

type flakyTx struct {
	repository.Tx
	store *flakyStore
}

func (t *flakyTx) SyncSubscriptionSlots(ctx context.Context, orgID, subID string, qty int, start, end time.Time) error {
	if t.store.failures > 0 {
		t.store.failures--
		return errors.New("slot sync unavailable")
	}
	return t.Tx.SyncSubscriptionSlots(ctx, orgID, subID, qty, start, end)
}

type fixture struct {
	store    *repository.InMemoryStore
	fetcher  *fakeFetcher
	producer *recordingProducer
	cache    *recordingInvalidator
	svc      *WebhookService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	f := &fixture{
		store:    repository.NewInMemoryStore(log),
		fetcher:  &fakeFetcher{subs: map[string]*domain.ProviderSubscription{}},
		producer: &recordingProducer{},
		cache:    &recordingInvalidator{},
	}
	f.svc = NewWebhookService(f.store, f.fetcher, f.cache, f.producer, nil, log)
	f.store.PutOrganization(domain.Organization{ID: testOrg, Name: "Acme"})
	f.store.PutMember(domain.OrganizationMember{
		ID: "owner", OrganizationID: testOrg, UserID: "user-owner",
		Role: domain.RoleOwner, Status: domain.MemberActive, JoinedDate: baseTime,
	})
	return f
}

// addMembers adds n non-owner members m1..mn with the given status, each
// joining one day after the previous.
func (f *fixture) addMembers(n int, status domain.MemberStatus) {
	for i := 1; i <= n; i++ {
		f.store.PutMember(domain.OrganizationMember{
			ID:             fmt.Sprintf("m%d", i),
			OrganizationID: testOrg,
			UserID:         fmt.Sprintf("user-%d", i),
			Role:           domain.RoleMember,
			Status:         status,
			JoinedDate:     baseTime.AddDate(0, 0, i),
		})
	}
}

func (f *fixture) addSubscription(id string, qty int, status domain.SubscriptionStatus) {
	f.store.PutSubscription(domain.UserLicenseSubscription{
		OrganizationID:       testOrg,
		StripeSubscriptionID: id,
		StripeCustomerID:     "cus_1",
		StripePriceID:        "price_seat",
		Quantity:             qty,
		Status:               status,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	})
}

func (f *fixture) memberStatuses(t *testing.T) map[string]domain.MemberStatus {
	t.Helper()
	members, err := f.store.ListMembers(context.Background(), testOrg)
	require.NoError(t, err)
	out := make(map[string]domain.MemberStatus, len(members))
	for _, m := range members {
		out[m.ID] = m.Status
	}
	return out
}

func (f *fixture) subscription(t *testing.T, id string) *domain.UserLicenseSubscription {
	t.Helper()
	sub, err := f.store.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (f *fixture) slots(t *testing.T) *domain.SlotAvailability {
	t.Helper()
	slots, err := f.store.GetSlotAvailability(context.Background(), testOrg)
	require.NoError(t, err)
	return slots
}
