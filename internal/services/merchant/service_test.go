package merchant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"
	"portal/internal/services/wallet"
	"portal/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) InvalidateCatalog(ctx context.Context, merchantID uint) {
	m.Called(ctx, merchantID)
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	store   *testutil.MemoryStore
	events  *events.Recorder
	catalog *MockCatalog
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	tx := repositories.NewTxManager(db)
	store := testutil.NewMemoryStore()
	rec := &events.Recorder{}
	cat := new(MockCatalog)
	svc := NewService(Deps{
		Merchants: repositories.NewMerchantRepository(db),
		Pricing:   repositories.NewPricingRepository(db),
		Tx:        tx,
		Wallets:   wallet.NewService(repositories.NewWalletRepository(db), tx, nil),
		Catalog:   cat,
		Store:     store,
		Events:    rec,
		KYBBucket: "kyb-documents",
	})
	return &fixture{svc: svc, db: db, store: store, events: rec, catalog: cat}
}

func session(sub, email string) *models.SessionClaims {
	return &models.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}, Email: email}
}

var completeProfile = OnboardingInput{
	LegalName:    "Northwind Research LLC",
	BrandName:    "Northwind",
	EIN:          "98-7654321",
	BusinessType: "llc",
	Phone:        "+15125550199",
	AddressLine1: "500 Congress Ave",
	City:         "Austin",
	State:        "TX",
	PostalCode:   "78701",
}

var pdf = []byte("%PDF-1.5\nkyb document\n")

func onboard(t *testing.T, f *fixture) *models.Merchant {
	ctx := context.Background()
	m, err := f.svc.SaveOnboarding(ctx, session("user-1", "Owner@Northwind.test"), completeProfile)
	require.NoError(t, err)
	for _, dt := range models.RequiredDocuments {
		_, err := f.svc.UploadDocument(ctx, m, dt, string(dt)+".pdf", pdf)
		require.NoError(t, err)
	}
	return m
}

func TestSaveOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Profile(ctx, "user-1")
	assert.True(t, errors.Is(err, apperrors.ErrMerchantNotFound))

	m, err := f.svc.SaveOnboarding(ctx, session("user-1", "owner@northwind.test"), OnboardingInput{LegalName: "Northwind Research LLC"})
	require.NoError(t, err)
	assert.Equal(t, models.KYBStatusDraft, m.KYBStatus)
	assert.False(t, m.OnboardingCompleted)
	assert.Equal(t, "US", m.Country)

	m, err = f.svc.SaveOnboarding(ctx, session("user-1", "owner@northwind.test"), completeProfile)
	require.NoError(t, err)
	assert.True(t, m.OnboardingCompleted)

	got, err := f.svc.Profile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "Northwind", got.DisplayName())
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, err := f.svc.SaveOnboarding(ctx, session("user-1", "a@test.dev"), completeProfile)
	require.NoError(t, err)

	doc, err := f.svc.UploadDocument(ctx, m, models.DocEINLetter, "EIN Letter.pdf", pdf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.StoragePath, fmt.Sprintf("%d/", m.ID)), doc.StoragePath)
	assert.True(t, f.store.Has("kyb-documents", doc.StoragePath))
	assert.Equal(t, "application/pdf", doc.ContentType)

	_, err = f.svc.UploadDocument(ctx, m, models.DocEINLetter, "x.txt", []byte("plain text"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidDocument))

	_, err = f.svc.UploadDocument(ctx, m, "passport", "x.pdf", pdf)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidRequest))

	view, err := f.svc.KYB(ctx, m)
	require.NoError(t, err)
	assert.Len(t, view.Documents, 1)
	assert.ElementsMatch(t, []models.DocumentType{models.DocArticlesOfIncorporation, models.DocGovernmentID}, view.Missing)
}

func TestSubmitRequiresDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.SaveOnboarding(ctx, session("user-1", "a@test.dev"), OnboardingInput{LegalName: "Half Done"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, m.ID)
	assert.True(t, errors.Is(err, apperrors.ErrOnboardingIncomplete))

	m, err = f.svc.SaveOnboarding(ctx, session("user-1", "a@test.dev"), completeProfile)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, m.ID)
	assert.True(t, errors.Is(err, apperrors.ErrMissingDocuments))
}

func TestReviewLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := onboard(t, f)

	m, err := f.svc.Submit(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KYBStatusSubmitted, m.KYBStatus)
	assert.NotNil(t, m.KYBSubmittedAt)

	_, err = f.svc.SaveOnboarding(ctx, session("user-1", "a@test.dev"), completeProfile)
	assert.True(t, errors.Is(err, apperrors.ErrOnboardingLocked))

	m, err = f.svc.StartReview(ctx, m.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, models.KYBStatusInReview, m.KYBStatus)

	_, err = f.svc.StartReview(ctx, m.ID, 9)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidKYBTransition))

	_, err = f.svc.Decide(ctx, m.ID, 9, DecisionInput{Decision: DecisionRequestInfo})
	assert.True(t, errors.Is(err, apperrors.ErrNotesRequired))

	m, err = f.svc.Decide(ctx, m.ID, 9, DecisionInput{Decision: DecisionRequestInfo, Notes: "Government ID is expired"})
	require.NoError(t, err)
	assert.Equal(t, models.KYBStatusNeedsInfo, m.KYBStatus)

	// The merchant fixes the document and resubmits.
	_, err = f.svc.UploadDocument(ctx, m, models.DocGovernmentID, "id.pdf", pdf)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, m.ID)
	require.NoError(t, err)

	m, err = f.svc.Decide(ctx, m.ID, 9, DecisionInput{Decision: DecisionApprove})
	require.NoError(t, err)
	assert.True(t, m.IsApproved())

	var w models.Wallet
	require.NoError(t, f.db.Where("merchant_id = ?", m.ID).First(&w).Error)
	assert.Zero(t, w.BalanceCents)

	decided := f.events.OfType(events.KYBDecided)
	require.Len(t, decided, 2)
	assert.Equal(t, "needs_info", decided[0].Data["decision"])
	assert.Equal(t, "approved", decided[1].Data["decision"])
	assert.Equal(t, "owner@northwind.test", decided[1].To)

	_, err = f.svc.Decide(ctx, m.ID, 9, DecisionInput{Decision: DecisionReject, Notes: "late"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidKYBTransition))

	_, err = f.svc.Suspend(ctx, m.ID, 9, "")
	assert.True(t, errors.Is(err, apperrors.ErrNotesRequired))
	m, err = f.svc.Suspend(ctx, m.ID, 9, "chargebacks")
	require.NoError(t, err)
	assert.Equal(t, models.KYBStatusSuspended, m.KYBStatus)
	m, err = f.svc.Reinstate(ctx, m.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, models.KYBStatusApproved, m.KYBStatus)
	_, err = f.svc.Reinstate(ctx, m.ID, 9)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidKYBTransition))
}

func TestDetailSignsDocuments(t *testing.T) {
	f := newFixture(t)
	m := onboard(t, f)

	got, err := f.svc.Detail(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, got.Documents, 3)
	for _, d := range got.Documents {
		assert.Contains(t, d.SignedURL, "kyb-documents/")
		assert.Contains(t, d.SignedURL, "ttl=15m0s")
	}
}

func TestSetPricingTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := testutil.SeedMerchant(t, f.db, models.KYBStatusApproved, 0)
	require.NoError(t, repositories.NewPricingRepository(f.db).UpsertTier(ctx, &models.PricingTier{Name: "gold", DiscountBPS: 2000}))

	_, err := f.svc.SetPricingTier(ctx, m.ID, "platinum")
	assert.True(t, errors.Is(err, apperrors.ErrTierNotFound))

	f.catalog.On("InvalidateCatalog", mock.Anything, m.ID).Once()
	got, err := f.svc.SetPricingTier(ctx, m.ID, "Gold")
	require.NoError(t, err)
	assert.Equal(t, "gold", got.PricingTier)
	f.catalog.AssertExpectations(t)
}
