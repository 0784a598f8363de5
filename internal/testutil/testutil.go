// Package testutil builds throwaway SQLite databases and Redis servers for
// package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/repositories/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// One connection keeps the shared in-memory database alive and
	// serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// NewCache returns a CacheService backed by miniredis.
func NewCache(t testing.TB) (*cache.CacheService, *miniredis.Miniredis) {
	client, mr := NewRedis(t)
	return cache.NewCacheService(client, 5*time.Minute), mr
}

// SeedMerchant inserts a merchant in the given KYB status with a wallet.
func SeedMerchant(t testing.TB, db *gorm.DB, status models.KYBStatus, balanceCents int64) *models.Merchant {
	t.Helper()
	m := &models.Merchant{
		AuthUserID:          uuid.NewString(),
		Email:               uuid.NewString()[:8] + "@merchant.test",
		LegalName:           "Acme Labs LLC",
		BrandName:           "Acme Peptides",
		EIN:                 "12-3456789",
		BusinessType:        "llc",
		Phone:               "+15555550100",
		AddressLine1:        "1 Main St",
		City:                "Austin",
		State:               "TX",
		PostalCode:          "78701",
		KYBStatus:           status,
		OnboardingCompleted: true,
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	w := &models.Wallet{MerchantID: m.ID, BalanceCents: balanceCents, Currency: models.DefaultCurrency, Status: models.WalletStatusActive}
	if err := db.Create(w).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return m
}

// SeedProduct inserts an active product.
func SeedProduct(t testing.TB, db *gorm.DB, sku string, priceCents int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		SKU:               sku,
		Name:              sku + " 5mg",
		Slug:              uuid.NewString(),
		Category:          "peptides",
		Unit:              "vial",
		BasePriceCents:    priceCents,
		StockOnHand:       stock,
		LowStockThreshold: 5,
		Active:            true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedAdmin inserts an active admin.
func SeedAdmin(t testing.TB, db *gorm.DB, email string, role models.AdminRole) *models.AdminUser {
	t.Helper()
	a := &models.AdminUser{Email: email, Name: "Admin", Role: role, Status: models.AdminStatusActive}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return a
}
