package order

import (
	"context"

	"portal/internal/models"

	"go.uber.org/zap"
)

// Settle pays the merchant's awaiting-funds orders oldest first while the
// balance covers them. It stops at the first order the balance cannot cover
// and skips orders whose stock is short. It returns how many were paid.
func (s *Service) Settle(ctx context.Context, merchantID uint) (int, error) {
	var paid []*models.Order
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.Wallets.LockWallet(ctx, merchantID)
		if err != nil {
			return err
		}
		if w.Status == models.WalletStatusLocked {
			return nil
		}
		orders, err := s.Orders.ListAwaitingFunds(ctx, merchantID)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		// Every product is locked in one sorted batch, the same order
		// Create and Cancel use.
		seen := make(map[uint]bool)
		var ids []uint
		for _, o := range orders {
			for _, it := range o.Items {
				if !seen[it.ProductID] {
					seen[it.ProductID] = true
					ids = append(ids, it.ProductID)
				}
			}
		}
		products, err := s.Products.GetManyForUpdate(ctx, ids)
		if err != nil {
			return err
		}

		balance := w.BalanceCents
		for i := range orders {
			o := &orders[i]
			if o.TotalCents > balance {
				break
			}
			if err := checkStock(o, products); err != nil {
				s.logger.Info("awaiting order skipped", zap.String("number", o.Number), zap.Error(err))
				continue
			}
			if err := s.charge(ctx, o, products); err != nil {
				return err
			}
			now := s.now()
			o.Status = models.OrderStatusPaid
			o.PaidAt = &now
			if err := s.Orders.Update(ctx, o); err != nil {
				return err
			}
			balance -= o.TotalCents
			paid = append(paid, o)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, o := range paid {
		s.Metrics.OrderStatus(string(o.Status))
		s.logger.Info("order settled", zap.String("number", o.Number), zap.Uint("merchant_id", merchantID))
	}
	if len(paid) > 0 {
		s.invalidate(ctx)
	}
	return len(paid), nil
}

func (s *Service) settleQuietly(ctx context.Context, merchantID uint) {
	if _, err := s.Settle(ctx, merchantID); err != nil {
		s.logger.Error("settle orders", zap.Uint("merchant_id", merchantID), zap.Error(err))
	}
}
