package domain

import "time"

// SubscriptionStatus is the persisted lifecycle state of a license subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionPaused    SubscriptionStatus = "paused"
)

// GrantsSeats reports whether members may hold seats under this status.
func (s SubscriptionStatus) GrantsSeats() bool {
	return s != SubscriptionCancelled && s != SubscriptionPaused
}

// UserLicenseSubscription is the single source of truth for how many seats an
// organization has paid for. Rows are never deleted.
type UserLicenseSubscription struct {
	OrganizationID       string             `json:"organization_id" db:"organization_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	StripeCustomerID     string             `json:"stripe_customer_id" db:"stripe_customer_id"`
	StripePriceID        string             `json:"stripe_price_id" db:"stripe_price_id"`
	Quantity             int                `json:"quantity" db:"quantity"`
	Status               SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end" db:"current_period_end"`
	UpdatedAt            time.Time          `json:"updated_at" db:"updated_at"`
}

// ProviderSubscription is the provider's current view of a subscription.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Quantity           int
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialEnd           time.Time
	Metadata           map[string]string
}
