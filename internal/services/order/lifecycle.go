package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"portal/internal/clients"
	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/services/events"
	"portal/internal/services/files"
	"portal/internal/services/wallet"

	"go.uber.org/zap"
)

// Cancel cancels an order, refunding and restocking it if it was charged.
// Merchants may cancel until the warehouse starts processing; admins until
// the order ships.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uint, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	var (
		o        *models.Order
		refunded bool
	)
	current, err := s.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.isMerchant() && current.MerchantID != actor.MerchantID {
		return nil, apperrors.ErrOrderNotFound
	}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		// Wallet before order before products, as in Create and Settle.
		if _, err := s.Wallets.LockWallet(ctx, current.MerchantID); err != nil &&
			!errors.Is(err, apperrors.ErrWalletNotFound) {
			return err
		}
		var err error
		o, err = s.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(models.OrderStatusCancelled) ||
			(actor.isMerchant() && o.Status == models.OrderStatusProcessing) {
			return apperrors.ErrInvalidOrderTransition.WithMessage(
				fmt.Sprintf("an order that is %s cannot be cancelled", o.Status))
		}

		if o.Status.Charged() {
			if err := s.refund(ctx, o); err != nil {
				return err
			}
			refunded = true
		}
		now := s.now()
		o.Status = models.OrderStatusCancelled
		o.CancelledAt = &now
		o.CancelReason = reason
		return s.Orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.OrderStatus(string(o.Status))
	s.logger.Info("order cancelled", zap.String("number", o.Number), zap.Bool("refunded", refunded),
		zap.Uint("merchant_actor", actor.MerchantID), zap.Uint("admin_actor", actor.AdminID))
	if refunded {
		s.invalidate(ctx)
	}
	// A cancelled order may have been the one blocking settlement.
	s.settleQuietly(ctx, o.MerchantID)
	return o, nil
}

func (s *Service) refund(ctx context.Context, o *models.Order) error {
	ids := make([]uint, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Products.GetManyForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	if err := s.moveStock(ctx, o, products, 1, "cancelled "+o.Number); err != nil {
		return err
	}
	_, err = s.Wallets.Credit(ctx, wallet.Operation{
		MerchantID:  o.MerchantID,
		Type:        models.EntryOrderRefund,
		AmountCents: o.TotalCents,
		Reference:   o.Number,
		Memo:        "Refund for order " + o.Number,
		Metadata:    models.JSON{"order_id": o.ID},
	})
	return err
}

// UpdateStatus applies the manual fulfilment steps: paid to processing and
// shipped to delivered. Shipping happens through CreateLabel.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus, adminID uint) (*models.Order, error) {
	var o *models.Order
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		manual := (o.Status == models.OrderStatusPaid && status == models.OrderStatusProcessing) ||
			(o.Status == models.OrderStatusShipped && status == models.OrderStatusDelivered)
		if !manual || !o.Status.CanTransition(status) {
			return apperrors.ErrInvalidOrderTransition.WithMessage(
				fmt.Sprintf("cannot move an order from %s to %s", o.Status, status))
		}
		o.Status = status
		if status == models.OrderStatusDelivered {
			now := s.now()
			o.DeliveredAt = &now
		}
		return s.Orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.OrderStatus(string(status))
	s.logger.Info("order status changed", zap.String("number", o.Number),
		zap.String("status", string(status)), zap.Uint("admin_id", adminID))
	return o, nil
}

// CreateLabel buys a shipping label for a processing order, stores the PDF
// and marks the order shipped.
func (s *Service) CreateLabel(ctx context.Context, id uint, in LabelInput, adminID uint) (*models.Order, error) {
	if s.Labels == nil || s.Store == nil {
		return nil, apperrors.ErrShippingUnavailable
	}
	o, err := s.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusProcessing {
		return nil, apperrors.ErrInvalidOrderTransition.WithMessage("labels can only be bought for processing orders")
	}

	label, err := s.Labels.CreateLabel(ctx, clients.LabelRequest{
		CarrierCode: in.CarrierCode,
		ServiceCode: in.ServiceCode,
		PackageCode: in.PackageCode,
		Weight:      clients.ShipStationWeight{Value: in.WeightOz, Units: "ounces"},
		ShipFrom:    s.ShipFrom,
		ShipTo:      shipTo(o),
	})
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("number", o.Number), zap.Int64("shipstation_shipment_id", label.ShipmentID))

	pdf, err := label.PDF()
	if err != nil {
		log.Error("label bought but unreadable", zap.Error(err))
		return nil, err
	}
	path := fmt.Sprintf("%d/%s.pdf", o.MerchantID, o.Number)
	if err := s.Store.Upload(ctx, s.LabelsBucket, path, files.ContentTypePDF, pdf); err != nil {
		log.Error("label bought but not stored", zap.Error(err))
		return nil, err
	}

	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := s.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransition(models.OrderStatusShipped) {
			return apperrors.ErrInvalidOrderTransition
		}
		shipment := &models.Shipment{
			OrderID:               locked.ID,
			CarrierCode:           in.CarrierCode,
			ServiceCode:           in.ServiceCode,
			TrackingNumber:        label.TrackingNumber,
			ShipStationShipmentID: label.ShipmentID,
			LabelPath:             path,
			CostCents:             label.CostCents(),
		}
		if err := s.Orders.CreateShipment(ctx, shipment); err != nil {
			return err
		}
		now := s.now()
		locked.Status = models.OrderStatusShipped
		locked.ShippedAt = &now
		locked.Shipment = shipment
		o = locked
		return s.Orders.Update(ctx, locked)
	})
	if err != nil {
		log.Error("label bought but order not updated", zap.Error(err))
		return nil, err
	}

	s.Metrics.OrderStatus(string(o.Status))
	log.Info("order shipped", zap.String("tracking", label.TrackingNumber), zap.Uint("admin_id", adminID))
	s.notifyShipped(ctx, o)
	return o, nil
}

func (s *Service) notifyShipped(ctx context.Context, o *models.Order) {
	m, err := s.Merchants.GetByID(ctx, o.MerchantID)
	if err != nil {
		s.logger.Error("load merchant for shipping email", zap.Error(err))
		return
	}
	s.publish(ctx, events.Event{
		Type: events.OrderShipped,
		To:   m.Email,
		Data: map[string]string{
			"order_id":        strconv.FormatUint(uint64(o.ID), 10),
			"number":          o.Number,
			"carrier":         o.Shipment.CarrierCode,
			"tracking_number": o.Shipment.TrackingNumber,
		},
	})
}

// LabelURL signs the stored label PDF of a shipped order.
func (s *Service) LabelURL(ctx context.Context, id uint) (string, error) {
	o, err := s.Orders.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if o.Shipment == nil || o.Shipment.LabelPath == "" {
		return "", apperrors.ErrNotFound.WithMessage("order has no label")
	}
	if s.Store == nil {
		return "", apperrors.ErrShippingUnavailable
	}
	return s.Store.SignedURL(ctx, s.LabelsBucket, o.Shipment.LabelPath, files.SignedURLTTL)
}
