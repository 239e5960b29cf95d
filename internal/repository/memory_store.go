package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

type memoryState struct {
	organizations map[string]domain.Organization
	members       map[string]domain.OrganizationMember
	subscriptions map[string]domain.UserLicenseSubscription
	slots         map[string]domain.SlotAvailability
	events        map[string]time.Time
	eventLogs     []domain.EventLog
	notifications []domain.Notification
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		organizations: maps.Clone(s.organizations),
		members:       maps.Clone(s.members),
		subscriptions: maps.Clone(s.subscriptions),
		slots:         maps.Clone(s.slots),
		events:        maps.Clone(s.events),
		eventLogs:     slices.Clone(s.eventLogs),
		notifications: slices.Clone(s.notifications),
	}
}

// InMemoryStore keeps all state in maps. Transactions work on a copy that
// replaces the live state on commit, and run one at a time.
type InMemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *memoryState
	log   *logger.Logger
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore(log *logger.Logger) *InMemoryStore {
	return &InMemoryStore{
		state: &memoryState{
			organizations: make(map[string]domain.Organization),
			members:       make(map[string]domain.OrganizationMember),
			subscriptions: make(map[string]domain.UserLicenseSubscription),
			slots:         make(map[string]domain.SlotAvailability),
			events:        make(map[string]time.Time),
		},
		log: log,
	}
}

// WithinTx runs fn against a snapshot and publishes it only when fn succeeds.
func (s *InMemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(&memoryTx{memoryReader{state: work}}); err != nil {
		s.log.Debugw("In-memory transaction rolled back", "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) GetSubscription(ctx context.Context, id string) (*domain.UserLicenseSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readerLocked().GetSubscription(ctx, id)
}

func (s *InMemoryStore) ListOrganizationSubscriptions(ctx context.Context, orgID string) ([]domain.UserLicenseSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readerLocked().ListOrganizationSubscriptions(ctx, orgID)
}

func (s *InMemoryStore) ListMembers(ctx context.Context, orgID string) ([]domain.OrganizationMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readerLocked().ListMembers(ctx, orgID)
}

func (s *InMemoryStore) ListNonOwnerMembers(ctx context.Context, orgID string, status domain.MemberStatus, limit int) ([]domain.OrganizationMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readerLocked().ListNonOwnerMembers(ctx, orgID, status, limit)
}

func (s *InMemoryStore) FindActiveOwner(ctx context.Context, orgID string) (*domain.OrganizationMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readerLocked().FindActiveOwner(ctx, orgID)
}

func (s *InMemoryStore) GetSlotAvailability(ctx context.Context, orgID string) (*domain.SlotAvailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readerLocked().GetSlotAvailability(ctx, orgID)
}

func (s *InMemoryStore) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.state.organizations[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

// ListSubscriptions returns all subscriptions ordered by Stripe id.
func (s *InMemoryStore) ListSubscriptions(ctx context.Context) ([]domain.UserLicenseSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := slices.Collect(maps.Values(s.state.subscriptions))
	slices.SortFunc(subs, func(a, b domain.UserLicenseSubscription) int {
		return strings.Compare(a.StripeSubscriptionID, b.StripeSubscriptionID)
	})
	return subs, nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *InMemoryStore) readerLocked() memoryReader {
	return memoryReader{state: s.state}
}

// Seeding helpers used by tests and the memory-backed dev server.

func (s *InMemoryStore) PutOrganization(org domain.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.organizations[org.ID] = org
}

func (s *InMemoryStore) PutMember(m domain.OrganizationMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.members[m.ID] = m
}

func (s *InMemoryStore) PutSubscription(sub domain.UserLicenseSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.subscriptions[sub.StripeSubscriptionID] = sub
}

func (s *InMemoryStore) PutSlotAvailability(slots domain.SlotAvailability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots.AvailableSlots = slots.TotalPurchased + slots.ExemptedSlots - slots.UsedSlots
	s.state.slots[slots.OrganizationID] = slots
}

// EventLogs returns a copy of the audit trail.
func (s *InMemoryStore) EventLogs() []domain.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.eventLogs)
}

// Notifications returns a copy of all notifications.
func (s *InMemoryStore) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.notifications)
}

// ProcessedEvents returns how many distinct event ids were recorded.
func (s *InMemoryStore) ProcessedEvents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.events)
}

type memoryReader struct {
	state *memoryState
}

func (r memoryReader) GetSubscription(_ context.Context, id string) (*domain.UserLicenseSubscription, error) {
	sub, ok := r.state.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (r memoryReader) ListOrganizationSubscriptions(_ context.Context, orgID string) ([]domain.UserLicenseSubscription, error) {
	var out []domain.UserLicenseSubscription
	for _, sub := range r.state.subscriptions {
		if sub.OrganizationID == orgID {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b domain.UserLicenseSubscription) int {
		return strings.Compare(a.StripeSubscriptionID, b.StripeSubscriptionID)
	})
	return out, nil
}

func (r memoryReader) ListMembers(_ context.Context, orgID string) ([]domain.OrganizationMember, error) {
	var out []domain.OrganizationMember
	for _, m := range r.state.members {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b domain.OrganizationMember) int {
		if c := a.JoinedDate.Compare(b.JoinedDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r memoryReader) ListNonOwnerMembers(ctx context.Context, orgID string, status domain.MemberStatus, limit int) ([]domain.OrganizationMember, error) {
	all, _ := r.ListMembers(ctx, orgID)
	var out []domain.OrganizationMember
	for _, m := range slices.Backward(all) {
		if m.IsOwner() || m.Status != status {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memoryReader) FindActiveOwner(_ context.Context, orgID string) (*domain.OrganizationMember, error) {
	for _, m := range r.state.members {
		if m.OrganizationID == orgID && m.IsOwner() && m.IsActive() {
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryReader) GetSlotAvailability(_ context.Context, orgID string) (*domain.SlotAvailability, error) {
	slots, ok := r.state.slots[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &slots, nil
}

type memoryTx struct {
	memoryReader
}

func (t *memoryTx) TryMarkEvent(_ context.Context, eventID string) (bool, error) {
	if _, seen := t.state.events[eventID]; seen {
		return false, nil
	}
	t.state.events[eventID] = time.Now()
	return true, nil
}

func (t *memoryTx) UpsertSubscription(_ context.Context, sub *domain.UserLicenseSubscription) error {
	if sub.StripeSubscriptionID == "" || sub.OrganizationID == "" {
		return ErrInvalidData
	}
	row := *sub
	row.UpdatedAt = time.Now()
	t.state.subscriptions[row.StripeSubscriptionID] = row
	return nil
}

func (t *memoryTx) UpdateSubscription(_ context.Context, sub *domain.UserLicenseSubscription) error {
	existing, ok := t.state.subscriptions[sub.StripeSubscriptionID]
	if !ok {
		return ErrNotFound
	}
	row := *sub
	row.OrganizationID = existing.OrganizationID
	row.UpdatedAt = time.Now()
	t.state.subscriptions[row.StripeSubscriptionID] = row
	return nil
}

func (t *memoryTx) SetMemberStatus(_ context.Context, orgID string, memberIDs []string, status domain.MemberStatus) error {
	for _, id := range memberIDs {
		m, ok := t.state.members[id]
		if !ok || m.OrganizationID != orgID || m.IsOwner() {
			continue
		}
		m.Status = status
		t.state.members[id] = m
	}
	return nil
}

func (t *memoryTx) DeactivateNonOwnerMembers(ctx context.Context, orgID string) ([]string, error) {
	active, _ := t.ListNonOwnerMembers(ctx, orgID, domain.MemberActive, 0)
	ids := make([]string, 0, len(active))
	for _, m := range active {
		m.Status = domain.MemberInactive
		t.state.members[m.ID] = m
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (t *memoryTx) SyncSubscriptionSlots(ctx context.Context, orgID, _ string, quantity int, periodStart, periodEnd time.Time) error {
	active, _ := t.ListNonOwnerMembers(ctx, orgID, domain.MemberActive, 0)
	slots := t.state.slots[orgID]
	slots.OrganizationID = orgID
	slots.TotalPurchased = quantity
	slots.UsedSlots = len(active)
	slots.CurrentPeriodStart = periodStart
	slots.CurrentPeriodEnd = periodEnd
	slots.AvailableSlots = slots.TotalPurchased + slots.ExemptedSlots - slots.UsedSlots
	t.state.slots[orgID] = slots
	return nil
}

func (t *memoryTx) InsertNotification(_ context.Context, n *domain.Notification) error {
	t.state.notifications = append(t.state.notifications, *n)
	return nil
}

func (t *memoryTx) InsertEventLog(_ context.Context, l *domain.EventLog) error {
	t.state.eventLogs = append(t.state.eventLogs, *l)
	return nil
}
