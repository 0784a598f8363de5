package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"
	"portal/internal/services/wallet"
	"portal/internal/testutil"
	"portal/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "mercury-whsec"

type fakeMercury struct {
	customers int
	created   []clients.CreateInvoiceInput
	status    map[string]string
	getErr    error
}

func newFakeMercury() *fakeMercury {
	return &fakeMercury{status: map[string]string{}}
}

func (f *fakeMercury) CreateCustomer(_ context.Context, name, email string) (string, error) {
	f.customers++
	return "cus_1", nil
}

func (f *fakeMercury) CreateInvoice(_ context.Context, in clients.CreateInvoiceInput) (*clients.MercuryInvoice, error) {
	f.created = append(f.created, in)
	id := "inv_" + string(rune('a'+len(f.created)-1))
	f.status[id] = clients.MercuryStatusUnpaid
	return &clients.MercuryInvoice{ID: id, Status: clients.MercuryStatusUnpaid, Amount: float64(in.AmountCents) / 100, Slug: "pay-" + id}, nil
}

func (f *fakeMercury) GetInvoice(_ context.Context, id string) (*clients.MercuryInvoice, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &clients.MercuryInvoice{ID: id, Status: f.status[id]}, nil
}

func (f *fakeMercury) CancelInvoice(_ context.Context, id string) (*clients.MercuryInvoice, error) {
	f.status[id] = clients.MercuryStatusCancelled
	return &clients.MercuryInvoice{ID: id, Status: clients.MercuryStatusCancelled}, nil
}

type countingSettler struct{ calls int }

func (s *countingSettler) Settle(context.Context, uint) (int, error) {
	s.calls++
	return 0, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	mercury *fakeMercury
	wallets wallet.Service
	settler *countingSettler
	events  *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	tx := repositories.NewTxManager(db)
	wallets := wallet.NewService(repositories.NewWalletRepository(db), tx, nil)
	f := &fixture{db: db, mercury: newFakeMercury(), wallets: wallets, settler: &countingSettler{}, events: &events.Recorder{}}
	f.svc = NewService(Deps{
		Invoices:      repositories.NewInvoiceRepository(db),
		Merchants:     repositories.NewMerchantRepository(db),
		Wallets:       wallets,
		Tx:            tx,
		Gateway:       f.mercury,
		Settler:       f.settler,
		Events:        f.events,
		WebhookSecret: secret,
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) balance(t *testing.T, merchantID uint) int64 {
	w, err := f.wallets.GetWallet(context.Background(), merchantID)
	require.NoError(t, err)
	return w.BalanceCents
}

func (f *fixture) create(t *testing.T, m *models.Merchant, amount int64) *models.MercuryInvoice {
	inv, err := f.svc.Create(context.Background(), 1, CreateInput{MerchantID: m.ID, AmountCents: amount, DueDate: "2026-03-20", Memo: " March "})
	require.NoError(t, err)
	return inv
}

func TestLocalStatus(t *testing.T) {
	due := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		remote string
		now    time.Time
		want   models.InvoiceStatus
		ok     bool
	}{
		{clients.MercuryStatusUnpaid, due, models.InvoiceOpen, true},
		{clients.MercuryStatusProcessing, due.Add(12 * time.Hour), models.InvoiceOpen, true},
		{clients.MercuryStatusUnpaid, due.Add(25 * time.Hour), models.InvoiceOverdue, true},
		{clients.MercuryStatusPaid, due.Add(48 * time.Hour), models.InvoicePaid, true},
		{clients.MercuryStatusCancelled, due, models.InvoiceCancelled, true},
		{"Archived", due, "", false},
	}
	for _, tc := range cases {
		got, ok := localStatus(tc.remote, due, tc.now)
		assert.Equal(t, tc.ok, ok, tc.remote)
		assert.Equal(t, tc.want, got, tc.remote)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)

	inv := f.create(t, m, 50000)
	assert.Equal(t, models.InvoiceOpen, inv.Status)
	assert.Equal(t, "inv_a", inv.MercuryInvoiceID)
	assert.Equal(t, "March", inv.Memo)
	assert.Equal(t, "https://app.mercury.com/pay/pay-inv_a", inv.HostedURL)
	require.NotNil(t, inv.CreatedByID)

	var stored models.Merchant
	require.NoError(t, f.db.First(&stored, m.ID).Error)
	assert.Equal(t, "cus_1", stored.MercuryCustomerID)

	f.create(t, &stored, 1000)
	assert.Equal(t, 1, f.mercury.customers, "customer is created once")

	sent := f.events.OfType(events.InvoiceCreated)
	require.Len(t, sent, 2)
	assert.Equal(t, m.Email, sent[0].To)
	assert.Equal(t, "50000", sent[0].Data["amount_cents"])
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	pending := testutil.SeedMerchant(t, f.db, models.KYBStatusInReview, 0)

	_, err := f.svc.Create(ctx, 1, CreateInput{MerchantID: pending.ID, AmountCents: 100, DueDate: "2026-03-20"})
	assert.ErrorIs(t, err, apperrors.ErrMerchantNotApproved)

	_, err = f.svc.Create(ctx, 1, CreateInput{MerchantID: approved.ID, AmountCents: 100, DueDate: "2026-03-01"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = f.svc.Create(ctx, 1, CreateInput{MerchantID: approved.ID, AmountCents: 100, DueDate: "03/20/2026"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = f.svc.Create(ctx, 1, CreateInput{MerchantID: 999, AmountCents: 100, DueDate: "2026-03-20"})
	assert.ErrorIs(t, err, apperrors.ErrMerchantNotFound)

	f.svc.Gateway = nil
	_, err = f.svc.Create(ctx, 1, CreateInput{MerchantID: approved.ID, AmountCents: 100, DueDate: "2026-03-20"})
	assert.ErrorIs(t, err, apperrors.ErrInvoicingUnavailable)
}

func TestSyncCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 100)
	inv := f.create(t, m, 50000)

	got, err := f.svc.Sync(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceOpen, got.Status)
	assert.Equal(t, int64(100), f.balance(t, m.ID))

	f.mercury.status[inv.MercuryInvoiceID] = clients.MercuryStatusPaid
	got, err = f.svc.Sync(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.NotNil(t, got.CreditedAt)
	assert.Equal(t, int64(50100), f.balance(t, m.ID))
	assert.Equal(t, 1, f.settler.calls)

	_, err = f.svc.Sync(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50100), f.balance(t, m.ID))
	assert.Equal(t, 1, f.settler.calls)
}

func TestSyncMarksOverdue(t *testing.T) {
	f := newFixture(t)
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	inv := f.create(t, m, 1000)

	f.svc.now = func() time.Time { return time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC) }
	got, err := f.svc.Sync(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceOverdue, got.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	inv := f.create(t, m, 1000)

	got, err := f.svc.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceCancelled, got.Status)

	_, err = f.svc.Cancel(ctx, inv.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvoiceClosed)
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	inv := f.create(t, m, 2500)

	body := []byte(`{"type":"invoice.updated","data":{"id":"inv_a","status":"Paid"}}`)
	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, body, "deadbeef"), apperrors.ErrInvalidSignature)
	assert.Equal(t, int64(0), f.balance(t, m.ID))

	sig := utils.SignHMACSHA256(secret, body)
	require.NoError(t, f.svc.HandleWebhook(ctx, body, sig))
	assert.Equal(t, int64(2500), f.balance(t, m.ID))

	// Redelivery is harmless.
	require.NoError(t, f.svc.HandleWebhook(ctx, body, "sha256="+sig))
	assert.Equal(t, int64(2500), f.balance(t, m.ID))

	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)

	unknown := []byte(`{"data":{"id":"inv_zzz","status":"Paid"}}`)
	assert.NoError(t, f.svc.HandleWebhook(ctx, unknown, utils.SignHMACSHA256(secret, unknown)))

	missing := []byte(`{"data":{}}`)
	assert.ErrorIs(t, f.svc.HandleWebhook(ctx, missing, utils.SignHMACSHA256(secret, missing)), apperrors.ErrInvalidRequest)
}

func TestSyncOpenCountsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	f.create(t, m, 1000)
	f.create(t, m, 2000)

	f.mercury.status["inv_b"] = clients.MercuryStatusPaid
	synced, failed, err := f.svc.SyncOpen(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Zero(t, failed)
	assert.Equal(t, int64(2000), f.balance(t, m.ID))

	f.mercury.getErr = errors.New("mercury down")
	synced, failed, err = f.svc.SyncOpen(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, synced)
	assert.Equal(t, 1, failed)
}
