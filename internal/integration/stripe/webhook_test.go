package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/Dhoini/seatsync/internal/domain"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload []byte, secret string, ts time.Time) string {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
		Scheme:    "v1",
	})
	return sp.Header
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(testSecret, 0)
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_1","object":"event","type":"invoice.payment_failed","api_version":"2020-08-27","data":{"object":{}}}`)
	event, err := v.Verify(payload, signed(t, payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.payment_failed", string(event.Type))
}

func TestVerifier_Rejects(t *testing.T) {
	v, err := NewVerifier(testSecret, time.Minute)
	require.NoError(t, err)
	payload := []byte(`{"id":"evt_1","object":"event","type":"x","data":{"object":{}}}`)

	_, err = v.Verify(payload, "")
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)

	_, err = v.Verify(payload, signed(t, payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)

	_, err = v.Verify(payload, signed(t, payload, testSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)

	tampered := []byte(`{"id":"evt_2","object":"event","type":"x","data":{"object":{}}}`)
	_, err = v.Verify(tampered, signed(t, payload, testSecret, time.Now()))
	assert.ErrorIs(t, err, domain.ErrWebhookValidationFailed)
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier("", 0)
	assert.Error(t, err)
}
