package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
	"github.com/stripe/stripe-go/v72/webhook"
)

const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// ErrStripeSignature is returned for webhook payloads that fail verification.
var ErrStripeSignature = errors.New("stripe: invalid webhook signature")

// PaymentIntent is the part of a Stripe PaymentIntent the portal keeps.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	MerchantID   uint   `json:"merchant_id"`
}

// PaymentEvent is a verified webhook event about a PaymentIntent.
type PaymentEvent struct {
	ID     string
	Type   string
	Intent PaymentIntent
}

// Stripe creates card top-up intents and verifies webhooks.
type Stripe struct {
	intents       paymentintent.Client
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return NewStripeWithBackend(stripe.GetBackend(stripe.APIBackend), secretKey, webhookSecret)
}

func NewStripeWithBackend(backend stripe.Backend, secretKey, webhookSecret string) *Stripe {
	return &Stripe{
		intents:       paymentintent.Client{B: backend, Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

// CreatePaymentIntent starts a USD card payment tagged with the merchant id.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, merchantID uint, amountCents int64, idempotencyKey string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountCents),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String("Wallet top-up"),
	}
	params.Context = ctx
	params.AddMetadata("merchant_id", strconv.FormatUint(uint64(merchantID), 10))
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			return nil, &APIError{Service: "stripe", Status: serr.HTTPStatusCode, Body: serr.Msg}
		}
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return toPaymentIntent(pi), nil
}

// ParseEvent verifies the Stripe-Signature header and decodes PaymentIntent
// events. Other event types come back with an empty Intent.
func (s *Stripe) ParseEvent(payload []byte, signature string) (*PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStripeSignature, err)
	}
	out := &PaymentEvent{ID: event.ID, Type: event.Type}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	if event.Type == EventPaymentIntentSucceeded {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: decode payment intent: %w", err)
		}
		out.Intent = *toPaymentIntent(&pi)
	}
	return out, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
	if v, err := strconv.ParseUint(pi.Metadata["merchant_id"], 10, 64); err == nil {
		out.MerchantID = uint(v)
	}
	return out
}
