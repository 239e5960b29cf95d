package repository

import (
	"context"
	"time"

	"github.com/Dhoini/seatsync/internal/domain"
)

// Reader is the read side shared by the store and an open transaction.
type Reader interface {
	// GetSubscription returns the license subscription by its Stripe id or ErrNotFound.
	GetSubscription(ctx context.Context, stripeSubscriptionID string) (*domain.UserLicenseSubscription, error)

	// ListOrganizationSubscriptions returns every license subscription of the
	// organization, current and historical, ordered by Stripe id.
	ListOrganizationSubscriptions(ctx context.Context, orgID string) ([]domain.UserLicenseSubscription, error)

	// ListMembers returns every member of the organization ordered by joined_date.
	ListMembers(ctx context.Context, orgID string) ([]domain.OrganizationMember, error)

	// ListNonOwnerMembers returns non-owner members with the given status, most
	// recently joined first. limit <= 0 returns all of them.
	ListNonOwnerMembers(ctx context.Context, orgID string, status domain.MemberStatus, limit int) ([]domain.OrganizationMember, error)

	// FindActiveOwner returns the organization's active owner or ErrNotFound.
	FindActiveOwner(ctx context.Context, orgID string) (*domain.OrganizationMember, error)

	// GetSlotAvailability returns the seat ledger or ErrNotFound.
	GetSlotAvailability(ctx context.Context, orgID string) (*domain.SlotAvailability, error)
}

// Tx is a unit of work. Writes become visible only if the surrounding
// WithinTx callback returns nil.
type Tx interface {
	Reader

	// TryMarkEvent records eventID as processed. It returns false when the id
	// was already recorded. The check and the insert are one atomic operation.
	TryMarkEvent(ctx context.Context, eventID string) (bool, error)

	UpsertSubscription(ctx context.Context, sub *domain.UserLicenseSubscription) error

	// UpdateSubscription returns ErrNotFound when no row matches.
	UpdateSubscription(ctx context.Context, sub *domain.UserLicenseSubscription) error

	// SetMemberStatus changes the status of the given non-owner members.
	SetMemberStatus(ctx context.Context, orgID string, memberIDs []string, status domain.MemberStatus) error

	// DeactivateNonOwnerMembers deactivates every active non-owner member and
	// returns their ids, most recently joined first.
	DeactivateNonOwnerMembers(ctx context.Context, orgID string) ([]string, error)

	// SyncSubscriptionSlots sets total_purchased and the billing period for the
	// organization and recomputes used_slots from its active non-owner members.
	// Exempted slots are left alone. Repeated calls converge to the same row.
	SyncSubscriptionSlots(ctx context.Context, orgID, stripeSubscriptionID string, quantity int, periodStart, periodEnd time.Time) error

	InsertNotification(ctx context.Context, n *domain.Notification) error
	InsertEventLog(ctx context.Context, l *domain.EventLog) error
}

// Store is the durable state behind webhook processing and billing reads.
type Store interface {
	Reader

	// WithinTx runs fn in a transaction, committing on nil and rolling back
	// otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error)
	ListSubscriptions(ctx context.Context) ([]domain.UserLicenseSubscription, error)
	Ping(ctx context.Context) error
}

// SlotRepository reads the seat ledger. The Redis cache decorates it.
type SlotRepository interface {
	GetSlotAvailability(ctx context.Context, orgID string) (*domain.SlotAvailability, error)
}
