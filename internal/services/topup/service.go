// Package topup funds merchant wallets by card through Stripe.
package topup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/services/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinAmountCents int64 = 500
	MaxAmountCents int64 = 1_000_000
)

// Gateway is satisfied by *clients.Stripe.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, merchantID uint, amountCents int64, idempotencyKey string) (*clients.PaymentIntent, error)
	ParseEvent(payload []byte, signature string) (*clients.PaymentEvent, error)
}

// Settler pays awaiting-funds orders after the wallet is credited.
type Settler interface {
	Settle(ctx context.Context, merchantID uint) (int, error)
}

type Service struct {
	gateway Gateway
	wallets wallet.Service
	settler Settler
	logger  *zap.Logger
}

// NewService returns a Service. A nil gateway disables card top-ups.
func NewService(gateway Gateway, wallets wallet.Service, settler Settler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gateway: gateway, wallets: wallets, settler: settler, logger: logger.Named("topup")}
}

// Create starts a card payment. The client confirms it with the returned
// client secret; the wallet is credited from the webhook.
func (s *Service) Create(ctx context.Context, m *models.Merchant, amountCents int64, idempotencyKey string) (*clients.PaymentIntent, error) {
	if s.gateway == nil {
		return nil, apperrors.ErrTopupUnavailable
	}
	if amountCents < MinAmountCents || amountCents > MaxAmountCents {
		return nil, apperrors.ErrInvalidAmount.WithMessage(
			fmt.Sprintf("top-ups must be between %d and %d cents", MinAmountCents, MaxAmountCents))
	}
	if _, err := s.wallets.EnsureWallet(ctx, m.ID); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	pi, err := s.gateway.CreatePaymentIntent(ctx, m.ID, amountCents, fmt.Sprintf("topup-%d-%s", m.ID, key))
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment intent created", zap.Uint("merchant_id", m.ID),
		zap.String("intent", pi.ID), zap.Int64("amount_cents", amountCents))
	return pi, nil
}

// HandleWebhook credits the wallet for succeeded payments. Redelivered
// events are absorbed by the ledger's reference uniqueness.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return apperrors.ErrTopupUnavailable
	}
	ev, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, clients.ErrStripeSignature) {
			return apperrors.ErrInvalidSignature
		}
		return err
	}
	if ev.Type != clients.EventPaymentIntentSucceeded {
		s.logger.Debug("stripe event ignored", zap.String("type", ev.Type))
		return nil
	}

	pi := ev.Intent
	log := s.logger.With(zap.String("intent", pi.ID), zap.Uint("merchant_id", pi.MerchantID))
	if pi.MerchantID == 0 || pi.AmountCents <= 0 || !strings.EqualFold(pi.Currency, models.DefaultCurrency) {
		log.Warn("payment intent not credited", zap.Int64("amount_cents", pi.AmountCents), zap.String("currency", pi.Currency))
		return nil
	}

	_, err = s.wallets.Credit(ctx, wallet.Operation{
		MerchantID:  pi.MerchantID,
		Type:        models.EntryCardTopup,
		AmountCents: pi.AmountCents,
		Reference:   pi.ID,
		Memo:        "Card top-up",
		Metadata:    models.JSON{"stripe_event": ev.ID},
	})
	switch {
	case errors.Is(err, apperrors.ErrDuplicateEntry):
		log.Info("payment intent already credited")
		return nil
	case errors.Is(err, apperrors.ErrWalletNotFound):
		// Not acked: Stripe redelivers until the wallet exists.
		log.Error("payment intent for merchant without wallet")
		return err
	case err != nil:
		return err
	}
	log.Info("wallet topped up", zap.Int64("amount_cents", pi.AmountCents))

	if s.settler != nil {
		if n, err := s.settler.Settle(ctx, pi.MerchantID); err != nil {
			log.Error("settle after top-up", zap.Error(err))
		} else if n > 0 {
			log.Info("orders settled", zap.Int("count", n))
		}
	}
	return nil
}
