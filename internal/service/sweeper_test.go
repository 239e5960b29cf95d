package service

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

func TestSweeper_RepairsDriftedState(t *testing.T) {
	f := newFixture(t)
	f.addMembers(3, domain.MemberActive)
	f.addSubscription("sub_1", 5, domain.SubscriptionActive)
	// Ledger left stale by a failed delivery.
	f.store.PutSlotAvailability(domain.NewSlotAvailability(testOrg, 1, 0, 2, time.Time{}, time.Time{}))

	sweeper := NewSweeper(f.store, f.cache, nil, logger.NewNop())
	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Subscriptions: 1, Synced: 1}, report)

	slots := f.slots(t)
	assert.Equal(t, 5, slots.TotalPurchased)
	assert.Equal(t, 3, slots.UsedSlots)
	assert.Equal(t, 2, slots.ExemptedSlots)
	assert.Equal(t, 4, slots.AvailableSlots)
	assert.Equal(t, periodEnd, slots.CurrentPeriodEnd)
	assert.Equal(t, []string{testOrg}, f.cache.orgs)

	again, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report, again)
	assert.Equal(t, *slots, *f.slots(t))
}

func TestSweeper_TearsDownCancelledSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.addMembers(2, domain.MemberActive)
	f.addSubscription("sub_1", 2, domain.SubscriptionCancelled)

	report, err := NewSweeper(f.store, nil, nil, logger.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TornDown)
	assert.Equal(t, 2, report.Deactivated)

	statuses := f.memberStatuses(t)
	assert.Equal(t, domain.MemberActive, statuses["owner"])
	assert.Equal(t, domain.MemberInactive, statuses["m1"])
	assert.Equal(t, domain.MemberInactive, statuses["m2"])
	assert.Equal(t, 0, f.slots(t).TotalPurchased)
}

func TestSweeper_Schedule(t *testing.T) {
	f := newFixture(t)
	c := cron.New()
	id, err := NewSweeper(f.store, nil, nil, logger.NewNop()).Schedule(c, "*/5 * * * *", time.Minute)
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = NewSweeper(f.store, nil, nil, logger.NewNop()).Schedule(c, "not a schedule", time.Minute)
	assert.Error(t, err)
}

func TestSweeper_ResubscribedOrganizationKeepsSeats(t *testing.T) {
	tests := []struct {
		name      string
		cancelled string
		active    string
	}{
		{"cancelled sorts first", "sub_a_old", "sub_b_new"},
		{"cancelled sorts last", "sub_z_old", "sub_b_new"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addMembers(3, domain.MemberActive)
			f.addSubscription(tt.cancelled, 3, domain.SubscriptionCancelled)
			f.addSubscription(tt.active, 5, domain.SubscriptionActive)

			sweeper := NewSweeper(f.store, f.cache, nil, logger.NewNop())
			for i := 0; i < 2; i++ {
				report, err := sweeper.Run(context.Background())
				require.NoError(t, err)
				assert.Equal(t, SweepReport{Subscriptions: 2, Synced: 1, Superseded: 1}, report)
			}

			for id, status := range f.memberStatuses(t) {
				assert.Equal(t, domain.MemberActive, status, id)
			}
			slots := f.slots(t)
			assert.Equal(t, 5, slots.TotalPurchased)
			assert.Equal(t, 3, slots.UsedSlots)
		})
	}
}
