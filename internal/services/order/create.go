package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/services/wallet"
	"portal/internal/utils"
	cachekeys "portal/internal/utils/cache"

	"go.uber.org/zap"
)

// idempotencyMarker is cached under the client's key. OrderID stays zero
// while the first request is still running.
type idempotencyMarker struct {
	OrderID uint `json:"order_id"`
}

// Create places an order. With a non-empty key a repeated request returns
// the order created by the first one.
func (s *Service) Create(ctx context.Context, m *models.Merchant, in CreateInput, idempotencyKey string) (*CreateResult, error) {
	if !m.IsApproved() {
		return nil, apperrors.ErrMerchantNotApproved
	}
	key := strings.TrimSpace(idempotencyKey)
	if len(key) > 128 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("Idempotency-Key is too long")
	}
	if key == "" {
		o, err := s.create(ctx, m, in, "")
		if err != nil {
			return nil, err
		}
		return &CreateResult{Order: o}, nil
	}

	if o, err := s.replay(ctx, m.ID, key); err != nil || o != nil {
		if err != nil {
			return nil, err
		}
		return &CreateResult{Order: o, Replayed: true}, nil
	}

	ck := cachekeys.IdempotencyKey(m.ID, key)
	claimed := true
	if s.Cache != nil {
		ok, err := s.Cache.SetNX(ctx, ck, idempotencyMarker{}, s.IdempotencyTTL)
		switch {
		case err != nil:
			s.logger.Warn("idempotency cache unavailable", zap.Error(err))
			claimed = false
		case !ok:
			return nil, apperrors.ErrIdempotencyInFlight
		}
	}

	o, err := s.create(ctx, m, in, key)
	if err != nil {
		if claimed && s.Cache != nil {
			if derr := s.Cache.Delete(ctx, ck); derr != nil {
				s.logger.Warn("release idempotency key", zap.Error(derr))
			}
		}
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetWithTTL(ctx, ck, idempotencyMarker{OrderID: o.ID}, s.IdempotencyTTL); err != nil {
			s.logger.Warn("store idempotency key", zap.Error(err))
		}
	}
	return &CreateResult{Order: o}, nil
}

// replay returns the order recorded for key, or nil if there is none.
func (s *Service) replay(ctx context.Context, merchantID uint, key string) (*models.Order, error) {
	if s.Cache != nil {
		var marker idempotencyMarker
		found, err := s.Cache.Get(ctx, cachekeys.IdempotencyKey(merchantID, key), &marker)
		if err != nil {
			s.logger.Warn("idempotency cache unavailable", zap.Error(err))
		}
		if found {
			if marker.OrderID == 0 {
				return nil, apperrors.ErrIdempotencyInFlight
			}
			return s.Orders.GetForMerchant(ctx, merchantID, marker.OrderID)
		}
	}
	// The cache entry may have expired or been lost; the column is the
	// durable record.
	o, err := s.Orders.GetByIdempotencyKey(ctx, merchantID, key)
	if errors.Is(err, apperrors.ErrOrderNotFound) {
		return nil, nil
	}
	return o, err
}

func (s *Service) create(ctx context.Context, m *models.Merchant, in CreateInput, key string) (*models.Order, error) {
	ids := make([]uint, 0, len(in.Items))
	seen := make(map[uint]bool, len(in.Items))
	for _, it := range in.Items {
		if seen[it.ProductID] {
			return nil, apperrors.ErrDuplicateOrderItem
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}

	number, err := utils.GenerateOrderNumber()
	if err != nil {
		return nil, err
	}

	var o *models.Order
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.Wallets.LockWallet(ctx, m.ID)
		if err != nil {
			return err
		}
		products, err := s.Products.GetManyForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		list := make([]*models.Product, 0, len(ids))
		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				return apperrors.ErrProductNotFound.WithMessage(fmt.Sprintf("product %d not found", id))
			}
			if !p.Active {
				return apperrors.ErrProductInactive.WithMessage(fmt.Sprintf("%s is not available", p.SKU))
			}
			list = append(list, p)
		}
		prices, err := s.Catalog.EffectivePrices(ctx, m, list)
		if err != nil {
			return err
		}

		o = &models.Order{
			Number:         number,
			MerchantID:     m.ID,
			Status:         models.OrderStatusAwaitingFunds,
			ShippingCents:  s.ShippingFeeCents,
			IdempotencyKey: key,
			CustomerEmail:  models.NormalizeEmail(in.CustomerEmail),
			ExternalRef:    strings.TrimSpace(in.ExternalRef),
			Notes:          strings.TrimSpace(in.Notes),
		}
		in.ShipTo.apply(o)
		for _, it := range in.Items {
			p := products[it.ProductID]
			line := prices[p.ID] * int64(it.Quantity)
			o.Items = append(o.Items, models.OrderItem{
				ProductID:      p.ID,
				SKU:            p.SKU,
				Name:           p.Name,
				Quantity:       it.Quantity,
				UnitPriceCents: prices[p.ID],
				LineTotalCents: line,
			})
			o.SubtotalCents += line
		}
		o.TotalCents = o.SubtotalCents + o.ShippingCents

		if w.Status == models.WalletStatusLocked {
			return apperrors.ErrWalletLocked
		}
		affordable := w.BalanceCents >= o.TotalCents
		if affordable {
			if err := checkStock(o, products); err != nil {
				return err
			}
			now := s.now()
			o.Status = models.OrderStatusPaid
			o.PaidAt = &now
		}
		if err := s.Orders.Create(ctx, o); err != nil {
			return err
		}
		if affordable {
			return s.charge(ctx, o, products)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.OrderStatus(string(o.Status))
	if o.Status == models.OrderStatusPaid {
		s.invalidate(ctx)
	}
	s.logger.Info("order placed", zap.String("number", o.Number), zap.Uint("merchant_id", m.ID),
		zap.String("status", string(o.Status)), zap.Int64("total_cents", o.TotalCents))
	return o, nil
}

func checkStock(o *models.Order, products map[uint]*models.Product) error {
	for _, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return apperrors.ErrProductNotFound
		}
		if p.StockOnHand < it.Quantity {
			return apperrors.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("only %d units of %s in stock", p.StockOnHand, p.SKU))
		}
	}
	return nil
}

// charge debits the wallet and takes the items out of stock. Products must
// be locked by the caller's transaction.
func (s *Service) charge(ctx context.Context, o *models.Order, products map[uint]*models.Product) error {
	if err := s.moveStock(ctx, o, products, -1, "order "+o.Number); err != nil {
		return err
	}
	_, err := s.Wallets.Debit(ctx, wallet.Operation{
		MerchantID:  o.MerchantID,
		Type:        models.EntryOrderDebit,
		AmountCents: o.TotalCents,
		Reference:   o.Number,
		Memo:        "Order " + o.Number,
		Metadata:    models.JSON{"order_id": o.ID},
	})
	return err
}

// moveStock applies sign*quantity for every item and records adjustments.
func (s *Service) moveStock(ctx context.Context, o *models.Order, products map[uint]*models.Product, sign int, reason string) error {
	orderID := o.ID
	for _, it := range o.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return apperrors.ErrProductNotFound
		}
		stock := p.StockOnHand + sign*it.Quantity
		if stock < 0 {
			return apperrors.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("only %d units of %s in stock", p.StockOnHand, p.SKU))
		}
		if err := s.Products.SetStock(ctx, p.ID, stock); err != nil {
			return err
		}
		p.StockOnHand = stock
		if err := s.Products.AddAdjustment(ctx, &models.InventoryAdjustment{
			ProductID:  p.ID,
			Delta:      sign * it.Quantity,
			StockAfter: stock,
			Reason:     reason,
			OrderID:    &orderID,
		}); err != nil {
			return err
		}
	}
	return nil
}
