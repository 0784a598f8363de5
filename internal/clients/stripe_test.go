package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

const whsec = "whsec_test"

func TestStripeParseEvent(t *testing.T) {
	s := NewStripe("sk_test", whsec)
	payload := testutil.StripeEvent("evt_1", EventPaymentIntentSucceeded,
		`{"id":"pi_123","object":"payment_intent","amount":2500,"currency":"usd","metadata":{"merchant_id":"42"}}`)

	ev, err := s.ParseEvent(payload, testutil.StripeSignature(whsec, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "pi_123", ev.Intent.ID)
	assert.Equal(t, int64(2500), ev.Intent.AmountCents)
	assert.Equal(t, "usd", ev.Intent.Currency)
	assert.Equal(t, uint(42), ev.Intent.MerchantID)

	_, err = s.ParseEvent(payload, testutil.StripeSignature("whsec_other", payload, time.Now()))
	assert.ErrorIs(t, err, ErrStripeSignature)

	_, err = s.ParseEvent(payload, testutil.StripeSignature(whsec, payload, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrStripeSignature, "outside tolerance")
}

func TestStripeParseOtherEvent(t *testing.T) {
	s := NewStripe("sk_test", whsec)
	payload := testutil.StripeEvent("evt_2", "charge.refunded", `{"id":"ch_1","object":"charge"}`)

	ev, err := s.ParseEvent(payload, testutil.StripeSignature(whsec, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", ev.Type)
	assert.Empty(t, ev.Intent.ID)
}

func TestStripeCreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2500", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "7", r.PostForm.Get("metadata[merchant_id]"))
		assert.Equal(t, "topup-7-abc", r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_9","object":"payment_intent","amount":2500,"currency":"usd","client_secret":"pi_9_secret","metadata":{"merchant_id":"7"}}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	s := NewStripeWithBackend(backend, "sk_test", whsec)

	pi, err := s.CreatePaymentIntent(context.Background(), 7, 2500, "topup-7-abc")
	require.NoError(t, err)
	assert.Equal(t, "pi_9", pi.ID)
	assert.Equal(t, "pi_9_secret", pi.ClientSecret)
	assert.Equal(t, uint(7), pi.MerchantID)
}
