package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/internal/repository"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// Outcome summarizes what processing one event changed.
type Outcome struct {
	EventID        string
	EventType      string
	OrganizationID string
	SubscriptionID string
	Duplicate      bool
	Skipped        string
	Deactivated    []string
	Reactivated    []string
}

// mutation is one write planned for an event and applied inside its transaction.
type mutation interface {
	apply(ctx context.Context, tx repository.Tx, out *Outcome) error
}

type upsertSubscription struct {
	sub domain.UserLicenseSubscription
}

func (m upsertSubscription) apply(ctx context.Context, tx repository.Tx, _ *Outcome) error {
	if err := tx.UpsertSubscription(ctx, &m.sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

type updateSubscription struct {
	sub domain.UserLicenseSubscription
}

func (m updateSubscription) apply(ctx context.Context, tx repository.Tx, _ *Outcome) error {
	if err := tx.UpdateSubscription(ctx, &m.sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

type syncSlots struct {
	orgID          string
	subscriptionID string
	quantity       int
	periodStart    time.Time
	periodEnd      time.Time
}

func (m syncSlots) apply(ctx context.Context, tx repository.Tx, _ *Outcome) error {
	if err := tx.SyncSubscriptionSlots(ctx, m.orgID, m.subscriptionID, m.quantity, m.periodStart, m.periodEnd); err != nil {
		return fmt.Errorf("sync slots: %w", err)
	}
	return nil
}

type setMemberStatus struct {
	orgID  string
	ids    []string
	status domain.MemberStatus
}

func (m setMemberStatus) apply(ctx context.Context, tx repository.Tx, out *Outcome) error {
	if len(m.ids) == 0 {
		return nil
	}
	if err := tx.SetMemberStatus(ctx, m.orgID, m.ids, m.status); err != nil {
		return fmt.Errorf("set member status %s: %w", m.status, err)
	}
	if m.status == domain.MemberActive {
		out.Reactivated = append(out.Reactivated, m.ids...)
	} else {
		out.Deactivated = append(out.Deactivated, m.ids...)
	}
	return nil
}

type teardownMembers struct{ orgID string }

func (m teardownMembers) apply(ctx context.Context, tx repository.Tx, out *Outcome) error {
	ids, err := tx.DeactivateNonOwnerMembers(ctx, m.orgID)
	if err != nil {
		return fmt.Errorf("teardown members: %w", err)
	}
	out.Deactivated = append(out.Deactivated, ids...)
	return nil
}

type createNotification struct{ n domain.Notification }

func (m createNotification) apply(ctx context.Context, tx repository.Tx, _ *Outcome) error {
	if err := tx.InsertNotification(ctx, &m.n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// planner turns a decoded event into mutations. It only reads state.
type planner struct {
	r   repository.Reader
	log *logger.Logger
	now func() time.Time
}

// plan returns the mutations for ev. fetched is the provider's view of the
// subscription for checkout and invoice events and nil otherwise.
func (p planner) plan(ctx context.Context, ev Event, fetched *domain.ProviderSubscription, out *Outcome) ([]mutation, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return p.checkoutCompleted(e, fetched, out)
	case InvoicePaid:
		return p.invoice(ctx, e.SubscriptionID, fetched, "", out)
	case InvoiceFailed:
		return p.invoice(ctx, e.SubscriptionID, fetched, domain.SubscriptionPastDue, out)
	case SubscriptionUpdated:
		return p.subscriptionUpdated(ctx, e.Subscription, out)
	case SubscriptionDeleted:
		return p.teardown(ctx, e.Subscription, domain.SubscriptionCancelled, out)
	case SubscriptionPaused:
		return p.teardown(ctx, e.Subscription, domain.SubscriptionPaused, out)
	case SubscriptionResumed:
		return p.subscriptionResumed(ctx, e.Subscription, out)
	case TrialWillEnd:
		return p.trialWillEnd(ctx, e.Subscription, out)
	case Unhandled:
		out.Skipped = e.Reason
		return nil, nil
	default:
		return nil, fmt.Errorf("no plan for %T", ev)
	}
}

func (p planner) checkoutCompleted(e CheckoutCompleted, fetched *domain.ProviderSubscription, out *Outcome) ([]mutation, error) {
	if fetched == nil {
		return nil, fmt.Errorf("subscription %s was not fetched", e.SubscriptionID)
	}
	sub := domain.UserLicenseSubscription{
		OrganizationID:       e.OrganizationID,
		StripeSubscriptionID: e.SubscriptionID,
		StripeCustomerID:     e.CustomerID,
		StripePriceID:        fetched.PriceID,
		Quantity:             e.LicenseQuantity,
		Status:               fetched.Status,
		CurrentPeriodStart:   fetched.CurrentPeriodStart,
		CurrentPeriodEnd:     fetched.CurrentPeriodEnd,
	}
	if sub.StripeCustomerID == "" {
		sub.StripeCustomerID = fetched.CustomerID
	}
	out.OrganizationID = sub.OrganizationID
	out.SubscriptionID = sub.StripeSubscriptionID
	return []mutation{upsertSubscription{sub: sub}, syncFor(sub)}, nil
}

// invoice refreshes the row from the fetched subscription. A non-empty
// forceStatus overrides the provider's status.
func (p planner) invoice(ctx context.Context, subID string, fetched *domain.ProviderSubscription, forceStatus domain.SubscriptionStatus, out *Outcome) ([]mutation, error) {
	out.SubscriptionID = subID
	if fetched == nil {
		return nil, fmt.Errorf("subscription %s was not fetched", subID)
	}
	existing, ok, err := p.existing(ctx, subID, out)
	if !ok {
		return nil, err
	}

	sub := *existing
	sub.Status = fetched.Status
	if forceStatus != "" {
		sub.Status = forceStatus
	}
	sub.Quantity = fetched.Quantity
	sub.CurrentPeriodStart = fetched.CurrentPeriodStart
	sub.CurrentPeriodEnd = fetched.CurrentPeriodEnd
	if fetched.PriceID != "" {
		sub.StripePriceID = fetched.PriceID
	}
	return p.seatMutations(ctx, nil, sub, out)
}

func (p planner) subscriptionUpdated(ctx context.Context, ps domain.ProviderSubscription, out *Outcome) ([]mutation, error) {
	out.SubscriptionID = ps.ID
	existing, ok, err := p.existing(ctx, ps.ID, out)
	if !ok {
		return nil, err
	}
	return p.seatMutations(ctx, existing, applyProvider(*existing, ps), out)
}

// teardown handles deletion and pause: every non-owner loses their seat
// unless a newer subscription of the organization grants them.
func (p planner) teardown(ctx context.Context, ps domain.ProviderSubscription, status domain.SubscriptionStatus, out *Outcome) ([]mutation, error) {
	out.SubscriptionID = ps.ID
	existing, ok, err := p.existing(ctx, ps.ID, out)
	if !ok {
		return nil, err
	}
	sub := *existing
	sub.Status = status
	if !ps.CurrentPeriodEnd.IsZero() {
		sub.CurrentPeriodStart = ps.CurrentPeriodStart
		sub.CurrentPeriodEnd = ps.CurrentPeriodEnd
	}
	return p.seatMutations(ctx, nil, sub, out)
}

// seatMutations persists sub and brings the organization's seats in line with
// it. A subscription that grants no seats tears the organization down unless
// another subscription of the organization now governs its seats, in which
// case only the row is updated. A quantity drop against prev runs the LIFO
// downgrade.
func (p planner) seatMutations(ctx context.Context, prev *domain.UserLicenseSubscription, sub domain.UserLicenseSubscription, out *Outcome) ([]mutation, error) {
	muts := []mutation{updateSubscription{sub: sub}}

	if !sub.Status.GrantsSeats() {
		stale, err := superseded(ctx, p.r, sub)
		if err != nil {
			return nil, err
		}
		if stale {
			p.log.Infow("Subscription no longer governs seats, leaving members untouched",
				"subscriptionID", sub.StripeSubscriptionID,
				"organizationID", sub.OrganizationID,
				"status", sub.Status)
			out.Skipped = "subscription superseded"
			return muts, nil
		}
		return append(muts, teardownMembers{orgID: sub.OrganizationID}, syncFor(sub)), nil
	}

	if prev != nil && sub.Quantity < prev.Quantity {
		ids, err := PlanDowngrade(ctx, p.r, sub.OrganizationID, sub.Quantity)
		if err != nil {
			return nil, err
		}
		p.log.Infow("Subscription downgraded",
			"subscriptionID", sub.StripeSubscriptionID,
			"organizationID", sub.OrganizationID,
			"from", prev.Quantity, "to", sub.Quantity,
			"deactivating", len(ids))
		muts = append(muts, setMemberStatus{orgID: sub.OrganizationID, ids: ids, status: domain.MemberInactive})
	}
	return append(muts, syncFor(sub)), nil
}

func (p planner) subscriptionResumed(ctx context.Context, ps domain.ProviderSubscription, out *Outcome) ([]mutation, error) {
	out.SubscriptionID = ps.ID
	existing, ok, err := p.existing(ctx, ps.ID, out)
	if !ok {
		return nil, err
	}
	sub := applyProvider(*existing, ps)
	sub.Status = domain.SubscriptionActive

	ids, err := PlanResume(ctx, p.r, sub.OrganizationID, sub.Quantity)
	if err != nil {
		return nil, err
	}
	return []mutation{
		updateSubscription{sub: sub},
		setMemberStatus{orgID: sub.OrganizationID, ids: ids, status: domain.MemberActive},
		syncFor(sub),
	}, nil
}

func (p planner) trialWillEnd(ctx context.Context, ps domain.ProviderSubscription, out *Outcome) ([]mutation, error) {
	out.SubscriptionID = ps.ID
	orgID := ps.Metadata[MetadataOrganizationID]
	existing, err := p.r.GetSubscription(ctx, ps.ID)
	switch {
	case err == nil:
		orgID = existing.OrganizationID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if orgID == "" {
		out.Skipped = "organization unknown"
		return nil, nil
	}
	out.OrganizationID = orgID

	owner, err := p.r.FindActiveOwner(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		out.Skipped = "organization has no active owner"
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}

	trialEnd := ps.TrialEnd
	message := "Your trial is ending soon. Add a payment method to keep your team's seats."
	if !trialEnd.IsZero() {
		message = fmt.Sprintf("Your trial ends on %s. Add a payment method to keep your team's seats.", trialEnd.Format("January 2, 2006"))
	}
	data, err := json.Marshal(map[string]any{
		"subscription_id": ps.ID,
		"trial_end":       trialEnd,
	})
	if err != nil {
		return nil, err
	}

	return []mutation{createNotification{n: domain.Notification{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         owner.UserID,
		Type:           domain.NotificationTrialEnding,
		Title:          "Trial ending soon",
		Message:        message,
		Data:           data,
		CreatedAt:      p.now(),
	}}}, nil
}

// existing loads the persisted row. A missing row is reported through ok=false
// with a nil error and recorded as skipped.
func (p planner) existing(ctx context.Context, subID string, out *Outcome) (*domain.UserLicenseSubscription, bool, error) {
	sub, err := p.r.GetSubscription(ctx, subID)
	if errors.Is(err, repository.ErrNotFound) {
		p.log.Warnw("No license subscription for event, skipping", "subscriptionID", subID, "eventType", out.EventType)
		out.Skipped = "subscription not found"
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load subscription: %w", err)
	}
	out.OrganizationID = sub.OrganizationID
	return sub, true, nil
}

func applyProvider(sub domain.UserLicenseSubscription, ps domain.ProviderSubscription) domain.UserLicenseSubscription {
	sub.Quantity = ps.Quantity
	sub.Status = ps.Status
	sub.CurrentPeriodStart = ps.CurrentPeriodStart
	sub.CurrentPeriodEnd = ps.CurrentPeriodEnd
	if ps.PriceID != "" {
		sub.StripePriceID = ps.PriceID
	}
	if ps.CustomerID != "" {
		sub.StripeCustomerID = ps.CustomerID
	}
	return sub
}

// syncFor syncs the ledger to the seats the subscription grants. Cancelled and
// paused subscriptions grant none.
func syncFor(sub domain.UserLicenseSubscription) syncSlots {
	qty := sub.Quantity
	if !sub.Status.GrantsSeats() {
		qty = 0
	}
	return syncSlots{
		orgID:          sub.OrganizationID,
		subscriptionID: sub.StripeSubscriptionID,
		quantity:       qty,
		periodStart:    sub.CurrentPeriodStart,
		periodEnd:      sub.CurrentPeriodEnd,
	}
}
