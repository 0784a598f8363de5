package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTxRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	tm := repositories.NewTxManager(db)
	products := repositories.NewProductRepository(db)

	boom := errors.New("boom")
	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		require.True(t, repositories.InTx(ctx))
		require.NoError(t, products.Create(ctx, &models.Product{
			SKU: "bpc-157", Name: "BPC-157", Slug: "bpc-157", BasePriceCents: 1000, LowStockThreshold: 5, Active: true,
		}))
		return boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	_, total, err := products.List(ctx, repositories.ProductFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRunInTxKeepsDomainErrors(t *testing.T) {
	db := testutil.NewDB(t)
	tm := repositories.NewTxManager(db)

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return tm.RunInTx(ctx, func(ctx context.Context) error {
			return apperrors.ErrInsufficientBalance
		})
	})
	de, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrInsufficientBalance.Code, de.Code)
}

func TestProductRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewProductRepository(db)

	p := testutil.SeedProduct(t, db, "tb-500", 4500, 3)
	assert.Equal(t, "TB-500", p.SKU)

	err := repo.Create(ctx, &models.Product{SKU: "TB-500 ", Name: "dup", Slug: "dup", LowStockThreshold: 1})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSKU)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrProductNotFound)

	other := testutil.SeedProduct(t, db, "GHK-CU", 2000, 50)
	locked, err := repo.GetManyForUpdate(ctx, []uint{p.ID, other.ID})
	require.NoError(t, err)
	assert.Len(t, locked, 2)

	low, err := repo.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)

	n, err := repo.CountLowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, total, err := repo.List(ctx, repositories.ProductFilter{Query: "ghk", ActiveOnly: true}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, other.ID, list[0].ID)

	assert.ErrorIs(t, repo.SetStock(ctx, p.ID, -1), apperrors.ErrInsufficientStock)
	require.NoError(t, repo.SetStock(ctx, p.ID, 10))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.StockOnHand)

	exists, err := repo.SlugExists(ctx, p.Slug, 0)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.SlugExists(ctx, p.Slug, p.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProductMSRPColumn(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewProductRepository(db)

	assert.True(t, db.Migrator().HasColumn(&models.Product{}, "msrp_cents"))
	assert.True(t, db.Migrator().HasColumn(&models.Shipment{}, "shipstation_shipment_id"))

	p := &models.Product{SKU: "kpv", Name: "KPV", Slug: "kpv", BasePriceCents: 3000, MSRPCents: 5900, LowStockThreshold: 2, Active: true}
	require.NoError(t, repo.Create(ctx, p))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5900), got.MSRPCents)

	var msrp int64
	require.NoError(t, db.Raw("SELECT msrp_cents FROM products WHERE id = ?", p.ID).Scan(&msrp).Error)
	assert.Equal(t, int64(5900), msrp)
}

func TestPricingRepositoryUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewPricingRepository(db)
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)
	p := testutil.SeedProduct(t, db, "BPC-157", 1000, 10)

	tier, err := repo.GetTier(ctx, models.DefaultPricingTier)
	require.NoError(t, err)
	assert.Zero(t, tier.DiscountBPS)

	require.NoError(t, repo.UpsertTier(ctx, &models.PricingTier{Name: "gold", DiscountBPS: 1500}))
	require.NoError(t, repo.UpsertTier(ctx, &models.PricingTier{Name: "gold", DiscountBPS: 2000}))
	tier, err = repo.GetTier(ctx, "gold")
	require.NoError(t, err)
	assert.Equal(t, 2000, tier.DiscountBPS)

	_, err = repo.GetTier(ctx, "platinum")
	assert.ErrorIs(t, err, apperrors.ErrTierNotFound)

	require.NoError(t, repo.UpsertMerchantPrice(ctx, &models.MerchantPrice{MerchantID: m.ID, ProductID: p.ID, PriceCents: 800}))
	require.NoError(t, repo.UpsertMerchantPrice(ctx, &models.MerchantPrice{MerchantID: m.ID, ProductID: p.ID, PriceCents: 750}))
	prices, err := repo.ListMerchantPrices(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, int64(750), prices[0].PriceCents)

	require.NoError(t, repo.DeleteMerchantPrice(ctx, m.ID, p.ID))
	prices, err = repo.ListMerchantPrices(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestLotRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewLotRepository(db)
	p := testutil.SeedProduct(t, db, "BPC-157", 1000, 10)
	now := time.Now().UTC()

	lot := &models.Lot{ProductID: p.ID, LotNumber: "L-001", ManufacturedAt: now.AddDate(0, -1, 0), ExpiresAt: now.AddDate(1, 0, 0)}
	require.NoError(t, repo.Create(ctx, lot))
	err := repo.Create(ctx, &models.Lot{ProductID: p.ID, LotNumber: "L-001", ManufacturedAt: now, ExpiresAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateLot)

	_, err = repo.LatestReleasedWithCOA(ctx, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrCOAMissing)

	lot.COAPath = "1/l-001.pdf"
	lot.Released = true
	require.NoError(t, repo.Update(ctx, lot))

	got, err := repo.LatestReleasedWithCOA(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.HasCOA)

	ids, err := repo.ProductIDsWithCOA(ctx)
	require.NoError(t, err)
	assert.True(t, ids[p.ID])
}

func TestOrderRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewOrderRepository(db)
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)
	p := testutil.SeedProduct(t, db, "BPC-157", 1000, 10)

	mk := func(number string, status models.OrderStatus, created time.Time) *models.Order {
		o := &models.Order{
			Number: number, MerchantID: m.ID, Status: status,
			SubtotalCents: 1000, ShippingCents: 0, TotalCents: 1000,
			IdempotencyKey: "key-" + number,
			Items:          []models.OrderItem{{ProductID: p.ID, SKU: p.SKU, Quantity: 1, UnitPriceCents: 1000, LineTotalCents: 1000}},
			CreatedAt:      created,
		}
		require.NoError(t, repo.Create(ctx, o))
		return o
	}
	base := time.Now().UTC().Add(-time.Hour)
	second := mk("ORD-2", models.OrderStatusAwaitingFunds, base.Add(time.Minute))
	first := mk("ORD-1", models.OrderStatusAwaitingFunds, base)
	paid := mk("ORD-3", models.OrderStatusPaid, base.Add(2*time.Minute))
	now := time.Now().UTC()
	paid.PaidAt = &now
	require.NoError(t, repo.Update(ctx, paid))

	got, err := repo.GetForMerchant(ctx, m.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	_, err = repo.GetForMerchant(ctx, m.ID+1, first.ID)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)

	byKey, err := repo.GetByIdempotencyKey(ctx, m.ID, "key-ORD-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, byKey.ID)

	awaiting, err := repo.ListAwaitingFunds(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, awaiting, 2)
	assert.Equal(t, first.ID, awaiting[0].ID)
	assert.Equal(t, second.ID, awaiting[1].ID)

	counts, err := repo.CountByStatus(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.OrderStatusAwaitingFunds])
	assert.Equal(t, int64(1), counts[models.OrderStatusPaid])

	sum, err := repo.SumAwaitingFunds(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), sum)

	spend, err := repo.SpendSince(ctx, m.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), spend)

	list, total, err := repo.List(ctx, repositories.OrderFilter{MerchantID: m.ID, Status: models.OrderStatusAwaitingFunds}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, repo.CreateShipment(ctx, &models.Shipment{OrderID: paid.ID, TrackingNumber: "1Z"}))
	err = repo.CreateShipment(ctx, &models.Shipment{OrderID: paid.ID, TrackingNumber: "1Z-again"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidOrderTransition)
}

func TestWalletEntryReferenceIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewWalletRepository(db)
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 500)

	w, err := repo.GetByMerchantID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.BalanceCents)

	entry := func() *models.WalletEntry {
		return &models.WalletEntry{
			WalletID: w.ID, MerchantID: m.ID, Type: models.EntryCardTopup,
			Reference: "pi_123", AmountCents: 500, BalanceAfterCents: 1000,
		}
	}
	require.NoError(t, repo.CreateEntry(ctx, entry()))
	assert.ErrorIs(t, repo.CreateEntry(ctx, entry()), apperrors.ErrDuplicateEntry)

	exists, err := repo.EntryExists(ctx, models.EntryCardTopup, "pi_123")
	require.NoError(t, err)
	assert.True(t, exists)

	// Same reference under another type is allowed.
	other := entry()
	other.Type = models.EntryAdjustment
	require.NoError(t, repo.CreateEntry(ctx, other))

	entries, total, err := repo.ListEntries(ctx, m.ID, repositories.EntryFilter{Type: models.EntryCardTopup}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, entries, 1)

	_, err = repo.GetByMerchantID(ctx, m.ID+100)
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)

	sum, err := repo.SumBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), sum)
}

func TestWithdrawalAndInvoiceSums(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	withdrawals := repositories.NewWithdrawalRepository(db)
	invoices := repositories.NewInvoiceRepository(db)
	m := testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)

	for _, st := range []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalCompleted} {
		require.NoError(t, withdrawals.Create(ctx, &models.WithdrawalRequest{
			MerchantID: m.ID, AmountCents: 1000, Destination: "acct ****1234", Status: st,
		}))
	}
	count, cents, err := withdrawals.SumPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(2000), cents)

	_, err = withdrawals.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrWithdrawalNotFound)

	require.NoError(t, invoices.Create(ctx, &models.MercuryInvoice{
		MerchantID: m.ID, MercuryInvoiceID: "inv_1", AmountCents: 5000, Status: models.InvoiceOpen, DueDate: time.Now(),
	}))
	require.NoError(t, invoices.Create(ctx, &models.MercuryInvoice{
		MerchantID: m.ID, MercuryInvoiceID: "inv_2", AmountCents: 7000, Status: models.InvoicePaid, DueDate: time.Now(),
	}))
	open, err := invoices.SumOpen(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), open)

	syncable, err := invoices.ListSyncable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, syncable, 1)
	assert.Equal(t, "inv_1", syncable[0].MercuryInvoiceID)

	got, err := invoices.GetByMercuryID(ctx, "inv_2")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)
}

func TestAdminLoginCodes(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewAdminUserRepository(db)
	admin := testutil.SeedAdmin(t, db, "Owner@Portal.test", models.AdminRoleOwner)

	got, err := repo.GetByEmail(ctx, "owner@portal.test")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	err = repo.Create(ctx, &models.AdminUser{Email: "owner@portal.test", Role: models.AdminRoleAdmin, Status: models.AdminStatusInvited})
	assert.ErrorIs(t, err, apperrors.ErrAdminExists)

	now := time.Now().UTC()
	code := &models.AdminLoginCode{AdminUserID: admin.ID, CodeHash: "x", ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, repo.CreateLoginCode(ctx, code))

	latest, err := repo.LatestLoginCode(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, code.ID, latest.ID)

	ok, err := repo.ConsumeLoginCode(ctx, code.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ConsumeLoginCode(ctx, code.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := repo.GetTokenVersion(ctx, admin.ID)
	require.NoError(t, err)
	require.NoError(t, repo.IncrementTokenVersion(ctx, admin.ID))
	v2, err := repo.GetTokenVersion(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, v+1, v2)

	owners, err := repo.CountActiveOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), owners)
}

func TestMerchantRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewMerchantRepository(db)
	a := testutil.SeedMerchant(t, db, models.KYBStatusSubmitted, 0)
	testutil.SeedMerchant(t, db, models.KYBStatusApproved, 0)

	got, err := repo.GetByAuthUserID(ctx, a.AuthUserID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.GetByAuthUserID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrMerchantNotFound)

	list, total, err := repo.List(ctx, repositories.MerchantFilter{Status: models.KYBStatusSubmitted}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, a.ID, list[0].ID)

	counts, err := repo.CountByKYBStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.KYBStatusApproved])

	require.NoError(t, repo.AddDocument(ctx, &models.KYBDocument{MerchantID: a.ID, DocType: models.DocEINLetter, StoragePath: "1/x.pdf"}))
	docs, err := repo.ListDocuments(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
