package stripe

import (
	"time"

	stripego "github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/seatsync/internal/domain"
)

// ToProviderSubscription converts a Stripe subscription into the domain view.
// The seat count and price come from the first subscription item.
func ToProviderSubscription(s *stripego.Subscription) domain.ProviderSubscription {
	out := domain.ProviderSubscription{
		ID:                 s.ID,
		Status:             MapSubscriptionStatus(s.Status),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		TrialEnd:           unixTime(s.TrialEnd),
		Metadata:           s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		out.Quantity = int(item.Quantity)
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out
}

// MapSubscriptionStatus collapses Stripe's statuses onto the persisted set.
func MapSubscriptionStatus(status stripego.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripego.SubscriptionStatusActive, stripego.SubscriptionStatusTrialing:
		return domain.SubscriptionActive
	case stripego.SubscriptionStatusCanceled, stripego.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionCancelled
	case stripego.SubscriptionStatusPaused:
		return domain.SubscriptionPaused
	default:
		// past_due, unpaid, incomplete
		return domain.SubscriptionPastDue
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
