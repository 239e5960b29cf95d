package service

import (
	"context"
	"fmt"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/repository"
)

// PlanDowngrade picks the active non-owner members that lose their seat when
// the organization drops to newQuantity seats. The most recently joined go
// first. It returns nil when nothing exceeds the quantity.
func PlanDowngrade(ctx context.Context, r repository.Reader, orgID string, newQuantity int) ([]string, error) {
	active, err := r.ListNonOwnerMembers(ctx, orgID, domain.MemberActive, 0)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	excess := len(active) - max(newQuantity, 0)
	if excess <= 0 {
		return nil, nil
	}
	return memberIDs(active[:excess]), nil
}

// PlanResume picks up to quantity inactive non-owner members to reactivate,
// most recently joined first.
func PlanResume(ctx context.Context, r repository.Reader, orgID string, quantity int) ([]string, error) {
	if quantity <= 0 {
		return nil, nil
	}
	inactive, err := r.ListNonOwnerMembers(ctx, orgID, domain.MemberInactive, quantity)
	if err != nil {
		return nil, fmt.Errorf("list inactive members: %w", err)
	}
	return memberIDs(inactive), nil
}

func memberIDs(members []domain.OrganizationMember) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	return ids
}

// CurrentSubscription picks the subscription that governs an organization's
// seats out of its current and historical rows. Seat-granting rows win, then
// the latest period end, then the highest Stripe id. subs must not be empty.
func CurrentSubscription(subs []domain.UserLicenseSubscription) domain.UserLicenseSubscription {
	current := subs[0]
	for _, sub := range subs[1:] {
		if governsOver(sub, current) {
			current = sub
		}
	}
	return current
}

func governsOver(a, b domain.UserLicenseSubscription) bool {
	if a.Status.GrantsSeats() != b.Status.GrantsSeats() {
		return a.Status.GrantsSeats()
	}
	if !a.CurrentPeriodEnd.Equal(b.CurrentPeriodEnd) {
		return a.CurrentPeriodEnd.After(b.CurrentPeriodEnd)
	}
	return a.StripeSubscriptionID > b.StripeSubscriptionID
}

// superseded reports whether sub, in its new state, has stopped governing its
// organization's seats because another subscription of the organization does.
func superseded(ctx context.Context, r repository.Reader, sub domain.UserLicenseSubscription) (bool, error) {
	if sub.Status.GrantsSeats() {
		return false, nil
	}
	subs, err := r.ListOrganizationSubscriptions(ctx, sub.OrganizationID)
	if err != nil {
		return false, fmt.Errorf("list organization subscriptions: %w", err)
	}
	for i := range subs {
		if subs[i].StripeSubscriptionID == sub.StripeSubscriptionID {
			subs[i] = sub
		}
	}
	if len(subs) == 0 {
		return false, nil
	}
	return CurrentSubscription(subs).StripeSubscriptionID != sub.StripeSubscriptionID, nil
}
