package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

const subscriptionJSON = `{
  "id": "sub_123",
  "object": "subscription",
  "customer": "cus_9",
  "status": "trialing",
  "current_period_start": 1790000000,
  "current_period_end": 1792592000,
  "trial_end": 1790600000,
  "metadata": {"organization_id": "org-1"},
  "items": {
    "object": "list",
    "data": [{"id": "si_1", "object": "subscription_item", "quantity": 4, "price": {"id": "price_seat", "object": "price"}}]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk_test_123", FetchTimeout: timeout, BackendURL: srv.URL}, logger.NewNop())
}

func TestClient_GetSubscription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(subscriptionJSON))
	}, time.Second)

	sub, err := c.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "cus_9", sub.CustomerID)
	assert.Equal(t, "price_seat", sub.PriceID)
	assert.Equal(t, 4, sub.Quantity)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, time.Unix(1792592000, 0).UTC(), sub.CurrentPeriodEnd)
	assert.Equal(t, "org-1", sub.Metadata["organization_id"])
}

func TestClient_GetSubscriptionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"type": "api_error", "message": "try again"}}`))
			return
		}
		_, _ = w.Write([]byte(subscriptionJSON))
	}, 5*time.Second)

	sub, err := c.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Quantity)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GetSubscriptionPermanentError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "No such subscription"}}`))
	}, time.Second)

	_, err := c.GetSubscription(context.Background(), "sub_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GetSubscriptionTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 100*time.Millisecond)

	start := time.Now()
	_, err := c.GetSubscription(context.Background(), "sub_slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMapSubscriptionStatus(t *testing.T) {
	tests := map[stripego.SubscriptionStatus]domain.SubscriptionStatus{
		stripego.SubscriptionStatusActive:            domain.SubscriptionActive,
		stripego.SubscriptionStatusTrialing:          domain.SubscriptionActive,
		stripego.SubscriptionStatusPastDue:           domain.SubscriptionPastDue,
		stripego.SubscriptionStatusUnpaid:            domain.SubscriptionPastDue,
		stripego.SubscriptionStatusIncomplete:        domain.SubscriptionPastDue,
		stripego.SubscriptionStatusCanceled:          domain.SubscriptionCancelled,
		stripego.SubscriptionStatusIncompleteExpired: domain.SubscriptionCancelled,
		stripego.SubscriptionStatusPaused:            domain.SubscriptionPaused,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapSubscriptionStatus(in), string(in))
	}
}

func TestToProviderSubscription_NoItems(t *testing.T) {
	sub := ToProviderSubscription(&stripego.Subscription{ID: "sub_1", Status: stripego.SubscriptionStatusActive})
	assert.Equal(t, 0, sub.Quantity)
	assert.Empty(t, sub.CustomerID)
	assert.True(t, sub.CurrentPeriodEnd.IsZero())
}
