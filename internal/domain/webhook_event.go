package domain

import (
	"encoding/json"
	"time"
)

// Stripe event types handled by the webhook processor
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventSubscriptionTrialWillEnd = "customer.subscription.trial_will_end"
	EventSubscriptionPaused       = "customer.subscription.paused"
	EventSubscriptionResumed      = "customer.subscription.resumed"
)

// EventLog is the audit row appended for every processed event.
type EventLog struct {
	EventID        string          `json:"event_id" db:"event_id"`
	EventType      string          `json:"event_type" db:"event_type"`
	SubscriptionID string          `json:"subscription_id" db:"subscription_id"`
	Payload        json.RawMessage `json:"payload" db:"payload"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// NotificationTrialEnding is the notification type written on trial_will_end.
const NotificationTrialEnding = "trial_ending"

// Notification is an in-app message for a single user.
type Notification struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Type           string          `json:"type" db:"type"`
	Title          string          `json:"title" db:"title"`
	Message        string          `json:"message" db:"message"`
	Data           json.RawMessage `json:"data" db:"data"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
