package topup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/wallet"
	"portal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const whsec = "whsec_test"

// stubGateway creates intents through a mock and verifies webhooks for real.
type stubGateway struct {
	mock.Mock
	*clients.Stripe
}

func (g *stubGateway) CreatePaymentIntent(ctx context.Context, merchantID uint, amountCents int64, key string) (*clients.PaymentIntent, error) {
	args := g.Called(ctx, merchantID, amountCents, key)
	pi, _ := args.Get(0).(*clients.PaymentIntent)
	return pi, args.Error(1)
}

type countingSettler struct {
	mu    sync.Mutex
	calls []uint
}

func (s *countingSettler) Settle(_ context.Context, merchantID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, merchantID)
	return 0, nil
}

func setup(t *testing.T) (*Service, *stubGateway, *countingSettler, *gorm.DB) {
	db := testutil.NewDB(t)
	wallets := wallet.NewService(repositories.NewWalletRepository(db), repositories.NewTxManager(db), nil)
	gw := &stubGateway{Stripe: clients.NewStripe("sk_test", whsec)}
	settler := &countingSettler{}
	return NewService(gw, wallets, settler, nil), gw, settler, db
}

func succeeded(intentID string, merchantID uint, amount int64, currency string) []byte {
	return testutil.StripeEvent("evt_"+intentID, clients.EventPaymentIntentSucceeded, fmt.Sprintf(
		`{"id":%q,"object":"payment_intent","amount":%d,"currency":%q,"metadata":{"merchant_id":"%d"}}`,
		intentID, amount, currency, merchantID))
}

func TestCreateBounds(t *testing.T) {
	svc, gw, _, db := setup(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)

	for _, amount := range []int64{0, 499, 1_000_001} {
		_, err := svc.Create(ctx, m, amount, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount, "amount %d", amount)
	}

	gw.On("CreatePaymentIntent", ctx, m.ID, int64(500), fmt.Sprintf("topup-%d-k1", m.ID)).
		Return(&clients.PaymentIntent{ID: "pi_1", ClientSecret: "secret", AmountCents: 500}, nil).Once()
	pi, err := svc.Create(ctx, m, 500, "k1")
	require.NoError(t, err)
	assert.Equal(t, "secret", pi.ClientSecret)
	gw.AssertExpectations(t)
}

func TestCreateWithoutGateway(t *testing.T) {
	db := testutil.NewDB(t)
	wallets := wallet.NewService(repositories.NewWalletRepository(db), repositories.NewTxManager(db), nil)
	svc := NewService(nil, wallets, nil, nil)

	_, err := svc.Create(context.Background(), &models.Merchant{ID: 1}, 1000, "")
	assert.ErrorIs(t, err, apperrors.ErrTopupUnavailable)
}

func TestWebhookCreditsOnce(t *testing.T) {
	svc, _, settler, db := setup(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 1000)

	payload := succeeded("pi_abc", m.ID, 2500, "usd")
	sig := testutil.StripeSignature(whsec, payload, time.Now())
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig))
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig), "redelivery is a no-op")

	var w models.Wallet
	require.NoError(t, db.Where("merchant_id = ?", m.ID).First(&w).Error)
	assert.Equal(t, int64(3500), w.BalanceCents)

	var entries []models.WalletEntry
	require.NoError(t, db.Where("merchant_id = ?", m.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryCardTopup, entries[0].Type)
	assert.Equal(t, "pi_abc", entries[0].Reference)
	assert.Equal(t, int64(3500), entries[0].BalanceAfterCents)

	assert.Equal(t, []uint{m.ID}, settler.calls)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _, _, db := setup(t)
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)
	payload := succeeded("pi_x", m.ID, 2500, "usd")

	err := svc.HandleWebhook(context.Background(), payload, testutil.StripeSignature("wrong", payload, time.Now()))
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestWebhookIgnoresUncreditable(t *testing.T) {
	svc, _, settler, db := setup(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)

	for name, payload := range map[string][]byte{
		"other type":     testutil.StripeEvent("evt_o", "payment_intent.created", `{"id":"pi_o","object":"payment_intent"}`),
		"no merchant":    succeeded("pi_n", 0, 2500, "usd"),
		"wrong currency": succeeded("pi_c", m.ID, 2500, "eur"),
	} {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, svc.HandleWebhook(ctx, payload, testutil.StripeSignature(whsec, payload, time.Now())))
		})
	}

	var count int64
	require.NoError(t, db.Model(&models.WalletEntry{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, settler.calls)
}

func TestWebhookWithoutWalletIsRedelivered(t *testing.T) {
	svc, _, settler, db := setup(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)
	require.NoError(t, db.Where("merchant_id = ?", m.ID).Delete(&models.Wallet{}).Error)

	payload := succeeded("pi_w", m.ID, 2500, "usd")
	sig := testutil.StripeSignature(whsec, payload, time.Now())
	assert.ErrorIs(t, svc.HandleWebhook(ctx, payload, sig), apperrors.ErrWalletNotFound)
	assert.Empty(t, settler.calls)

	require.NoError(t, db.Create(&models.Wallet{MerchantID: m.ID, Currency: models.DefaultCurrency, Status: models.WalletStatusActive}).Error)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig))

	var w models.Wallet
	require.NoError(t, db.Where("merchant_id = ?", m.ID).First(&w).Error)
	assert.Equal(t, int64(2500), w.BalanceCents)
	assert.Equal(t, []uint{m.ID}, settler.calls)
}
