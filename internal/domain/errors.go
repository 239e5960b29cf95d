package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrInvalidInput rejected input data
	ErrInvalidInput = errors.New("invalid input data")

	// ErrForbidden caller is not allowed to see the organization
	ErrForbidden = errors.New("forbidden")

	// ErrSubscriptionNotFound no persisted license subscription for the external id
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrOrganizationNotFound unknown organization
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrMissingMetadata checkout session lacks organization_id or license_quantity
	ErrMissingMetadata = errors.New("missing checkout metadata")

	// ErrWebhookValidationFailed signature verification failed
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrMalformedEvent event payload could not be decoded
	ErrMalformedEvent = errors.New("malformed event payload")

	// ErrExternalServiceUnavailable provider call failed or timed out
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// EventError ties a processing failure to the webhook event that caused it.
type EventError struct {
	EventID     string
	EventType   string
	Message     string
	OriginalErr error
}

// Error implements the error interface
func (e *EventError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("event %s (%s): %s: %v", e.EventID, e.EventType, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("event %s (%s): %s", e.EventID, e.EventType, e.Message)
}

// Unwrap returns the wrapped cause
func (e *EventError) Unwrap() error {
	return e.OriginalErr
}

// NewEventError creates an EventError
func NewEventError(eventID, eventType, message string, err error) *EventError {
	return &EventError{
		EventID:     eventID,
		EventType:   eventType,
		Message:     message,
		OriginalErr: err,
	}
}
