package service

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/seatsync/internal/domain"
	stripeint "github.com/Dhoini/seatsync/internal/integration/stripe"
)

// Checkout session metadata keys
const (
	MetadataOrganizationID  = "organization_id"
	MetadataLicenseQuantity = "license_quantity"
)

// EventMeta is carried by every decoded event. Raw is the whole event as
// stored in the audit log.
type EventMeta struct {
	ID       string
	Type     string
	Raw      json.RawMessage
	ObjectID string
}

func (m EventMeta) meta() EventMeta { return m }

// Event is a verified webhook event decoded into one of the handled kinds.
type Event interface {
	meta() EventMeta
}

type CheckoutCompleted struct {
	EventMeta
	OrganizationID  string
	LicenseQuantity int
	SubscriptionID  string
	CustomerID      string
}

type InvoicePaid struct {
	EventMeta
	SubscriptionID string
}

type InvoiceFailed struct {
	EventMeta
	SubscriptionID string
}

type SubscriptionUpdated struct {
	EventMeta
	Subscription domain.ProviderSubscription
}

type SubscriptionDeleted struct {
	EventMeta
	Subscription domain.ProviderSubscription
}

type TrialWillEnd struct {
	EventMeta
	Subscription domain.ProviderSubscription
}

type SubscriptionPaused struct {
	EventMeta
	Subscription domain.ProviderSubscription
}

type SubscriptionResumed struct {
	EventMeta
	Subscription domain.ProviderSubscription
}

// Unhandled is any event that causes no mutation. It is still marked processed
// and audit-logged.
type Unhandled struct {
	EventMeta
	Reason string
}

// DecodeEvent maps a verified Stripe event onto its typed form. Checkout
// sessions in subscription mode without organization_id and license_quantity
// metadata fail with domain.ErrMissingMetadata.
func DecodeEvent(event stripe.Event) (Event, error) {
	meta := EventMeta{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", domain.ErrMalformedEvent, event.ID)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	meta.Raw = raw
	if id, ok := event.Data.Object["id"].(string); ok {
		meta.ObjectID = id
	}

	switch meta.Type {
	case domain.EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := unmarshalObject(event, &session); err != nil {
			return nil, err
		}
		return decodeCheckout(meta, &session)

	case domain.EventInvoicePaymentSucceeded, domain.EventInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := unmarshalObject(event, &invoice); err != nil {
			return nil, err
		}
		if invoice.Subscription == nil || invoice.Subscription.ID == "" {
			return Unhandled{EventMeta: meta, Reason: "invoice has no subscription"}, nil
		}
		if meta.Type == domain.EventInvoicePaymentSucceeded {
			return InvoicePaid{EventMeta: meta, SubscriptionID: invoice.Subscription.ID}, nil
		}
		return InvoiceFailed{EventMeta: meta, SubscriptionID: invoice.Subscription.ID}, nil

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted,
		domain.EventSubscriptionTrialWillEnd, domain.EventSubscriptionPaused,
		domain.EventSubscriptionResumed:
		var sub stripe.Subscription
		if err := unmarshalObject(event, &sub); err != nil {
			return nil, err
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("%w: subscription id missing", domain.ErrMalformedEvent)
		}
		ps := stripeint.ToProviderSubscription(&sub)
		switch meta.Type {
		case domain.EventSubscriptionUpdated:
			return SubscriptionUpdated{EventMeta: meta, Subscription: ps}, nil
		case domain.EventSubscriptionDeleted:
			return SubscriptionDeleted{EventMeta: meta, Subscription: ps}, nil
		case domain.EventSubscriptionTrialWillEnd:
			return TrialWillEnd{EventMeta: meta, Subscription: ps}, nil
		case domain.EventSubscriptionPaused:
			return SubscriptionPaused{EventMeta: meta, Subscription: ps}, nil
		default:
			return SubscriptionResumed{EventMeta: meta, Subscription: ps}, nil
		}
	}

	return Unhandled{EventMeta: meta, Reason: "unhandled event type"}, nil
}

func decodeCheckout(meta EventMeta, session *stripe.CheckoutSession) (Event, error) {
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		return Unhandled{EventMeta: meta, Reason: "checkout session is not in subscription mode"}, nil
	}

	orgID := session.Metadata[MetadataOrganizationID]
	rawQty := session.Metadata[MetadataLicenseQuantity]
	if orgID == "" || rawQty == "" {
		return nil, fmt.Errorf("%w: session %s needs %s and %s",
			domain.ErrMissingMetadata, session.ID, MetadataOrganizationID, MetadataLicenseQuantity)
	}
	qty, err := strconv.Atoi(rawQty)
	if err != nil || qty < 0 {
		return nil, fmt.Errorf("%w: license_quantity %q", domain.ErrInvalidInput, rawQty)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return nil, fmt.Errorf("%w: session %s has no subscription", domain.ErrMalformedEvent, session.ID)
	}

	ev := CheckoutCompleted{
		EventMeta:       meta,
		OrganizationID:  orgID,
		LicenseQuantity: qty,
		SubscriptionID:  session.Subscription.ID,
	}
	if session.Customer != nil {
		ev.CustomerID = session.Customer.ID
	}
	return ev, nil
}

func unmarshalObject(event stripe.Event, v any) error {
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, event.Type, err)
	}
	return nil
}
