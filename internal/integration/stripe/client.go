package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// Config configures the Stripe API client
type Config struct {
	APIKey string
	// FetchTimeout bounds one subscription retrieval including retries.
	FetchTimeout time.Duration
	// BackendURL overrides the API base URL; empty means api.stripe.com.
	BackendURL string
}

// Client retrieves subscriptions from the Stripe API
type Client struct {
	api     *client.API
	timeout time.Duration
	log     *logger.Logger
}

// NewClient creates a new Stripe client
func NewClient(cfg Config, log *logger.Logger) *Client {
	var backends *stripego.Backends
	if cfg.BackendURL != "" {
		backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
			URL:               stripego.String(cfg.BackendURL),
			MaxNetworkRetries: stripego.Int64(0),
		})
		backends = &stripego.Backends{API: backend, Connect: backend, Uploads: backend}
	}

	sc := &client.API{}
	sc.Init(cfg.APIKey, backends)

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{api: sc, timeout: timeout, log: log}
}

// GetSubscription fetches the subscription's current state. Retryable Stripe
// errors are retried with exponential backoff until the fetch timeout expires.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSubscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sub *stripego.Subscription
	operation := func() error {
		params := &stripego.SubscriptionParams{}
		params.Context = ctx

		var err error
		sub, err = c.api.Subscriptions.Get(subscriptionID, params)
		if err == nil {
			return nil
		}
		if isRetryableStripeError(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = c.timeout

	notify := func(err error, wait time.Duration) {
		c.log.Warnw("Retrying Stripe subscription fetch", "subscriptionID", subscriptionID, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		logStripeError(c.log, "GetSubscription", err)
		return nil, fmt.Errorf("%w: retrieve subscription %s: %v", domain.ErrExternalServiceUnavailable, subscriptionID, err)
	}

	mapped := ToProviderSubscription(sub)
	return &mapped, nil
}

// isRetryableStripeError reports whether a retry may succeed: rate limits,
// Stripe 5xx responses and transport failures.
func isRetryableStripeError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		return stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented
	}
	return true
}

func logStripeError(log *logger.Logger, op string, err error) {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", op,
			"status", stripeErr.HTTPStatusCode,
			"type", stripeErr.Type,
			"code", stripeErr.Code,
			"requestID", stripeErr.RequestID,
			"message", stripeErr.Msg,
		)
		return
	}
	log.Errorw("Stripe request failed", "operation", op, "error", err)
}
