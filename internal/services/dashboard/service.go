// Package dashboard aggregates the merchant and admin home page numbers.
package dashboard

import (
	"context"
	"time"

	"portal/internal/models"
	"portal/internal/repositories"

	"golang.org/x/sync/errgroup"
)

const spendWindow = 30 * 24 * time.Hour

type Service interface {
	Merchant(ctx context.Context, merchantID uint) (*models.MerchantDashboardStats, error)
	Admin(ctx context.Context) (*models.AdminDashboardStats, error)
}

type service struct {
	orders      repositories.OrderRepository
	wallets     repositories.WalletRepository
	merchants   repositories.MerchantRepository
	products    repositories.ProductRepository
	withdrawals repositories.WithdrawalRepository
	invoices    repositories.InvoiceRepository
	now         func() time.Time
}

func NewService(
	orders repositories.OrderRepository,
	wallets repositories.WalletRepository,
	merchants repositories.MerchantRepository,
	products repositories.ProductRepository,
	withdrawals repositories.WithdrawalRepository,
	invoices repositories.InvoiceRepository,
) Service {
	return &service{
		orders:      orders,
		wallets:     wallets,
		merchants:   merchants,
		products:    products,
		withdrawals: withdrawals,
		invoices:    invoices,
		now:         time.Now,
	}
}

func (s *service) Merchant(ctx context.Context, merchantID uint) (*models.MerchantDashboardStats, error) {
	stats := &models.MerchantDashboardStats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.OrdersByStatus, err = s.orders.CountByStatus(ctx, merchantID)
		return err
	})
	g.Go(func() error {
		w, err := s.wallets.GetByMerchantID(ctx, merchantID)
		if err != nil {
			return err
		}
		stats.BalanceCents, stats.HeldCents = w.BalanceCents, w.HeldCents
		return nil
	})
	g.Go(func() (err error) {
		stats.SpendLast30DCents, err = s.orders.SpendSince(ctx, merchantID, s.now().Add(-spendWindow))
		return err
	})
	g.Go(func() (err error) {
		stats.AwaitingFundsCents, err = s.orders.SumAwaitingFunds(ctx, merchantID)
		return err
	})
	g.Go(func() (err error) {
		stats.OpenInvoiceCents, err = s.invoices.SumOpen(ctx, merchantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.AwaitingFundsCount = stats.OrdersByStatus[models.OrderStatusAwaitingFunds]
	if short := stats.AwaitingFundsCents - stats.BalanceCents; short > 0 {
		stats.AmountToSettleCents = short
	}
	return stats, nil
}

func (s *service) Admin(ctx context.Context) (*models.AdminDashboardStats, error) {
	stats := &models.AdminDashboardStats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.MerchantsByKYB, err = s.merchants.CountByKYBStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.OrdersByStatus, err = s.orders.CountByStatus(ctx, 0)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingWithdrawals, stats.PendingWithdrawalsCents, err = s.withdrawals.SumPending(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.OpenInvoiceCents, err = s.invoices.SumOpen(ctx, 0)
		return err
	})
	g.Go(func() (err error) {
		stats.LowStockProducts, err = s.products.CountLowStock(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.WalletBalanceCents, err = s.wallets.SumBalances(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
