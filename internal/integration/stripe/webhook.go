package stripe

import (
	"errors"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/Dhoini/seatsync/internal/domain"
)

// SignatureHeader carries the Stripe webhook signature
const SignatureHeader = "Stripe-Signature"

// Verifier checks webhook signatures against the endpoint signing secret
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier creates a verifier. A zero tolerance uses Stripe's default of
// five minutes.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}, nil
}

// Verify authenticates payload and parses it into an event. API version
// mismatches are accepted because only a few stable fields are read.
func (v *Verifier) Verify(payload []byte, signature string) (stripego.Event, error) {
	if signature == "" {
		return stripego.Event{}, fmt.Errorf("%w: missing %s header", domain.ErrWebhookValidationFailed, SignatureHeader)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripego.Event{}, fmt.Errorf("%w: %v", domain.ErrWebhookValidationFailed, err)
	}
	return event, nil
}
