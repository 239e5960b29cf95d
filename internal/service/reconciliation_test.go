package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/seatsync/internal/domain"
)

func TestPlanDowngrade(t *testing.T) {
	tests := []struct {
		name     string
		active   int
		quantity int
		want     []string
	}{
		{"within quantity", 3, 5, nil},
		{"exactly quantity", 3, 3, nil},
		{"one over", 4, 3, []string{"m4"}},
		{"to zero", 3, 0, []string{"m3", "m2", "m1"}},
		{"negative quantity", 2, -1, []string{"m2", "m1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addMembers(tt.active, domain.MemberActive)
			ids, err := PlanDowngrade(context.Background(), f.store, testOrg, tt.quantity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestPlanDowngrade_IgnoresOwnerAndPending(t *testing.T) {
	f := newFixture(t)
	f.addMembers(2, domain.MemberActive)
	f.store.PutMember(domain.OrganizationMember{ID: "p1", OrganizationID: testOrg, Role: domain.RoleMember,
		Status: domain.MemberPending, JoinedDate: baseTime.AddDate(1, 0, 0)})

	ids, err := PlanDowngrade(context.Background(), f.store, testOrg, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, ids)
}

func TestPlanDowngrade_TiesBrokenByID(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "c", "b"} {
		f.store.PutMember(domain.OrganizationMember{ID: id, OrganizationID: testOrg, Role: domain.RoleMember,
			Status: domain.MemberActive, JoinedDate: baseTime.AddDate(0, 1, 0)})
	}
	ids, err := PlanDowngrade(context.Background(), f.store, testOrg, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids)
}

func TestPlanResume(t *testing.T) {
	f := newFixture(t)
	f.addMembers(5, domain.MemberInactive)

	ids, err := PlanResume(context.Background(), f.store, testOrg, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m5", "m4", "m3"}, ids)

	ids, err = PlanResume(context.Background(), f.store, testOrg, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 5)

	ids, err = PlanResume(context.Background(), f.store, testOrg, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCurrentSubscription(t *testing.T) {
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	july := june.AddDate(0, 1, 0)
	sub := func(id string, status domain.SubscriptionStatus, end time.Time) domain.UserLicenseSubscription {
		return domain.UserLicenseSubscription{StripeSubscriptionID: id, Status: status, CurrentPeriodEnd: end}
	}

	tests := []struct {
		name string
		subs []domain.UserLicenseSubscription
		want string
	}{
		{"single", []domain.UserLicenseSubscription{sub("sub_1", domain.SubscriptionCancelled, june)}, "sub_1"},
		{"granting beats later cancelled", []domain.UserLicenseSubscription{
			sub("sub_old", domain.SubscriptionActive, june), sub("sub_new", domain.SubscriptionCancelled, july)}, "sub_old"},
		{"past due still grants", []domain.UserLicenseSubscription{
			sub("sub_a", domain.SubscriptionPaused, july), sub("sub_b", domain.SubscriptionPastDue, june)}, "sub_b"},
		{"latest period end", []domain.UserLicenseSubscription{
			sub("sub_b", domain.SubscriptionActive, july), sub("sub_a", domain.SubscriptionActive, june)}, "sub_b"},
		{"tie on id", []domain.UserLicenseSubscription{
			sub("sub_a", domain.SubscriptionCancelled, june), sub("sub_b", domain.SubscriptionCancelled, june)}, "sub_b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentSubscription(tt.subs).StripeSubscriptionID)
		})
	}
}
