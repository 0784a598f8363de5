package withdrawal

import (
	"context"
	"testing"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"
	"portal/internal/services/wallet"
	"portal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type countingSettler struct {
	calls []uint
}

func (s *countingSettler) Settle(_ context.Context, merchantID uint) (int, error) {
	s.calls = append(s.calls, merchantID)
	return 0, nil
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	wallets wallet.Service
	settler *countingSettler
	events  *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	tx := repositories.NewTxManager(db)
	wallets := wallet.NewService(repositories.NewWalletRepository(db), tx, nil)
	settler := &countingSettler{}
	rec := &events.Recorder{}
	svc := NewService(Deps{
		Withdrawals: repositories.NewWithdrawalRepository(db),
		Merchants:   repositories.NewMerchantRepository(db),
		Wallets:     wallets,
		Tx:          tx,
		Settler:     settler,
		Events:      rec,
	})
	return &fixture{svc: svc, db: db, wallets: wallets, settler: settler, events: rec}
}

func (f *fixture) balance(t *testing.T, merchantID uint) (int64, int64) {
	w, err := f.wallets.GetWallet(context.Background(), merchantID)
	require.NoError(t, err)
	return w.BalanceCents, w.HeldCents
}

func TestRequestHoldsFunds(t *testing.T) {
	f := newFixture(t)
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 10000)

	wr, err := f.svc.Request(context.Background(), m, RequestInput{AmountCents: 4000, Destination: " Chase ****1234 "})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, wr.Status)
	assert.Equal(t, "Chase ****1234", wr.Destination)

	bal, held := f.balance(t, m.ID)
	assert.Equal(t, int64(6000), bal)
	assert.Equal(t, int64(4000), held)

	var entry models.WalletEntry
	require.NoError(t, f.db.Where("reference = ?", "wd-1").First(&entry).Error)
	assert.Equal(t, models.EntryWithdrawalHold, entry.Type)
	assert.Equal(t, int64(-4000), entry.AmountCents)
}

func TestRequestRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 1000)
	pending := testutil.SeedMerchant(t, f.db, models.KYBStatusSubmitted, 1000)

	_, err := f.svc.Request(ctx, pending, RequestInput{AmountCents: 100, Destination: "bank"})
	assert.ErrorIs(t, err, apperrors.ErrMerchantNotApproved)

	_, err = f.svc.Request(ctx, approved, RequestInput{AmountCents: 0, Destination: "bank"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)

	_, err = f.svc.Request(ctx, approved, RequestInput{AmountCents: 100, Destination: "  "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = f.svc.Request(ctx, approved, RequestInput{AmountCents: 1001, Destination: "bank"})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	var n int64
	f.db.Model(&models.WithdrawalRequest{}).Count(&n)
	assert.Zero(t, n, "failed hold must roll back the request row")
}

func TestApproveAndComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 5000)
	wr, err := f.svc.Request(ctx, m, RequestInput{AmountCents: 2000, Destination: "bank"})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, wr.ID, 9, "ACH-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidWithdrawalTransition)

	wr, err = f.svc.Approve(ctx, wr.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, wr.Status)
	require.NotNil(t, wr.ApprovedAt)
	require.NotNil(t, wr.ReviewerID)
	assert.Equal(t, uint(9), *wr.ReviewerID)

	_, err = f.svc.Complete(ctx, wr.ID, 9, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	wr, err = f.svc.Complete(ctx, wr.ID, 9, "ACH-1")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalCompleted, wr.Status)
	assert.Equal(t, "ACH-1", wr.PayoutReference)
	require.NotNil(t, wr.CompletedAt)

	bal, held := f.balance(t, m.ID)
	assert.Equal(t, int64(3000), bal)
	assert.Zero(t, held)

	sent := f.events.OfType(events.WithdrawalCompleted)
	require.Len(t, sent, 1)
	assert.Equal(t, m.Email, sent[0].To)
	assert.Equal(t, "2000", sent[0].Data["amount_cents"])
	assert.Equal(t, "ACH-1", sent[0].Data["payout_reference"])

	_, err = f.svc.Complete(ctx, wr.ID, 9, "ACH-2")
	assert.ErrorIs(t, err, apperrors.ErrWithdrawalAlreadyCompleted)
	_, held = f.balance(t, m.ID)
	assert.Zero(t, held)
}

func TestRejectReleasesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 5000)
	wr, err := f.svc.Request(ctx, m, RequestInput{AmountCents: 2000, Destination: "bank"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, wr.ID, 3)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, wr.ID, 3, " ")
	assert.ErrorIs(t, err, apperrors.ErrReasonRequired)

	wr, err = f.svc.Reject(ctx, wr.ID, 3, "account closed")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, wr.Status)
	assert.Equal(t, "account closed", wr.RejectionReason)

	bal, held := f.balance(t, m.ID)
	assert.Equal(t, int64(5000), bal)
	assert.Zero(t, held)
	assert.Equal(t, []uint{m.ID}, f.settler.calls)

	_, err = f.svc.Reject(ctx, wr.ID, 3, "again")
	assert.ErrorIs(t, err, apperrors.ErrInvalidWithdrawalTransition)
	bal, _ = f.balance(t, m.ID)
	assert.Equal(t, int64(5000), bal)
}

func TestCancelByMerchant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 5000)
	other := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	wr, err := f.svc.Request(ctx, m, RequestInput{AmountCents: 1500, Destination: "bank"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, other.ID, wr.ID)
	assert.ErrorIs(t, err, apperrors.ErrWithdrawalNotFound)

	wr, err = f.svc.Cancel(ctx, m.ID, wr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalCancelled, wr.Status)
	bal, held := f.balance(t, m.ID)
	assert.Equal(t, int64(5000), bal)
	assert.Zero(t, held)
	assert.Equal(t, []uint{m.ID}, f.settler.calls)

	_, err = f.svc.Cancel(ctx, m.ID, wr.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidWithdrawalTransition)
}

func TestCancelAfterApprovalRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 5000)
	wr, err := f.svc.Request(ctx, m, RequestInput{AmountCents: 1500, Destination: "bank"})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, wr.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, m.ID, wr.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidWithdrawalTransition)
	_, held := f.balance(t, m.ID)
	assert.Equal(t, int64(1500), held)
}

func TestListScopesToMerchant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 5000)
	b := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 5000)
	for _, m := range []*models.Merchant{a, a, b} {
		_, err := f.svc.Request(ctx, m, RequestInput{AmountCents: 100, Destination: "bank"})
		require.NoError(t, err)
	}

	list, total, err := f.svc.ListForMerchant(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, wr := range list {
		assert.Equal(t, a.ID, wr.MerchantID)
	}

	_, total, err = f.svc.List(ctx, repositories.WithdrawalFilter{Status: models.WithdrawalPending}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
