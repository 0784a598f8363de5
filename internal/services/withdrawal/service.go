// Package withdrawal pays wallet funds back out to merchants. Requested
// amounts are held on the wallet until an admin completes or rejects them.
package withdrawal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"
	"portal/internal/services/wallet"

	"go.uber.org/zap"
)

type RequestInput struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Destination string `json:"destination" validate:"required,max=255"`
}

// Settler is satisfied by *order.Service.
type Settler interface {
	Settle(ctx context.Context, merchantID uint) (int, error)
}

// Metrics is satisfied by *metrics.Registry.
type Metrics interface {
	WithdrawalStatus(status string)
}

type Deps struct {
	Withdrawals repositories.WithdrawalRepository
	Merchants   repositories.MerchantRepository
	Wallets     wallet.Service
	Tx          repositories.TxManager
	Settler     Settler
	Events      events.Publisher
	Metrics     Metrics
	Logger      *zap.Logger
}

type Service struct {
	Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{Deps: d, logger: d.Logger.Named("withdrawal"), now: time.Now}
}

func reference(id uint) string {
	return "wd-" + strconv.FormatUint(uint64(id), 10)
}

// Request holds the amount on the merchant's wallet and opens a pending
// withdrawal.
func (s *Service) Request(ctx context.Context, m *models.Merchant, in RequestInput) (*models.WithdrawalRequest, error) {
	if !m.IsApproved() {
		return nil, apperrors.ErrMerchantNotApproved
	}
	if in.AmountCents <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	dest := strings.TrimSpace(in.Destination)
	if dest == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("destination is required")
	}

	wr := &models.WithdrawalRequest{
		MerchantID:  m.ID,
		AmountCents: in.AmountCents,
		Destination: dest,
		Status:      models.WithdrawalPending,
	}
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Withdrawals.Create(ctx, wr); err != nil {
			return err
		}
		_, err := s.Wallets.Hold(ctx, wallet.Operation{
			MerchantID:  m.ID,
			AmountCents: in.AmountCents,
			Reference:   reference(wr.ID),
			Memo:        "Withdrawal to " + dest,
			Metadata:    models.JSON{"withdrawal_id": wr.ID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(wr, 0)
	return wr, nil
}

func (s *Service) ListForMerchant(ctx context.Context, merchantID uint, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	return s.Withdrawals.List(ctx, repositories.WithdrawalFilter{MerchantID: merchantID}, limit, offset)
}

func (s *Service) List(ctx context.Context, filter repositories.WithdrawalFilter, limit, offset int) ([]models.WithdrawalRequest, int64, error) {
	return s.Withdrawals.List(ctx, filter, limit, offset)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	return s.Withdrawals.GetByID(ctx, id)
}

// Cancel lets the merchant withdraw a pending request.
func (s *Service) Cancel(ctx context.Context, merchantID, id uint) (*models.WithdrawalRequest, error) {
	wr, err := s.transition(ctx, id, func(ctx context.Context, wr *models.WithdrawalRequest) error {
		if wr.MerchantID != merchantID {
			return apperrors.ErrWithdrawalNotFound
		}
		if wr.Status != models.WithdrawalPending {
			return invalid(wr, "cancelled")
		}
		wr.Status = models.WithdrawalCancelled
		return s.release(ctx, wr, "Withdrawal cancelled")
	})
	if err != nil {
		return nil, err
	}
	s.record(wr, 0)
	s.settle(ctx, wr.MerchantID)
	return wr, nil
}

func (s *Service) Approve(ctx context.Context, id, adminID uint) (*models.WithdrawalRequest, error) {
	wr, err := s.transition(ctx, id, func(ctx context.Context, wr *models.WithdrawalRequest) error {
		if wr.Status != models.WithdrawalPending {
			return invalid(wr, "approved")
		}
		now := s.now()
		wr.Status = models.WithdrawalApproved
		wr.ReviewerID = &adminID
		wr.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(wr, adminID)
	return wr, nil
}

// Reject returns the held funds to the balance.
func (s *Service) Reject(ctx context.Context, id, adminID uint, reason string) (*models.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.ErrReasonRequired
	}
	wr, err := s.transition(ctx, id, func(ctx context.Context, wr *models.WithdrawalRequest) error {
		if !wr.Status.Open() {
			return invalid(wr, "rejected")
		}
		wr.Status = models.WithdrawalRejected
		wr.ReviewerID = &adminID
		wr.RejectionReason = reason
		return s.release(ctx, wr, "Withdrawal rejected: "+reason)
	})
	if err != nil {
		return nil, err
	}
	s.record(wr, adminID)
	s.settle(ctx, wr.MerchantID)
	return wr, nil
}

// Complete records the payout and drops the held funds.
func (s *Service) Complete(ctx context.Context, id, adminID uint, payoutReference string) (*models.WithdrawalRequest, error) {
	payoutReference = strings.TrimSpace(payoutReference)
	if payoutReference == "" {
		return nil, apperrors.ErrInvalidRequest.WithMessage("payout_reference is required")
	}
	wr, err := s.transition(ctx, id, func(ctx context.Context, wr *models.WithdrawalRequest) error {
		if wr.Status == models.WithdrawalCompleted {
			return apperrors.ErrWithdrawalAlreadyCompleted
		}
		if wr.Status != models.WithdrawalApproved {
			return invalid(wr, "completed")
		}
		if err := s.Wallets.CompleteHold(ctx, wr.MerchantID, wr.AmountCents); err != nil {
			return err
		}
		wr.Status = models.WithdrawalCompleted
		wr.PayoutReference = payoutReference
		now := s.now()
		wr.CompletedAt = &now
		if wr.ReviewerID == nil {
			wr.ReviewerID = &adminID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(wr, adminID)
	s.notifyCompleted(ctx, wr)
	return wr, nil
}

func (s *Service) transition(ctx context.Context, id uint, mutate func(ctx context.Context, wr *models.WithdrawalRequest) error) (*models.WithdrawalRequest, error) {
	var out *models.WithdrawalRequest
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		wr, err := s.Withdrawals.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(ctx, wr); err != nil {
			return err
		}
		if err := s.Withdrawals.Update(ctx, wr); err != nil {
			return err
		}
		out = wr
		return nil
	})
	return out, err
}

func (s *Service) release(ctx context.Context, wr *models.WithdrawalRequest, memo string) error {
	_, err := s.Wallets.Release(ctx, wallet.Operation{
		MerchantID:  wr.MerchantID,
		AmountCents: wr.AmountCents,
		Reference:   reference(wr.ID),
		Memo:        memo,
		Metadata:    models.JSON{"withdrawal_id": wr.ID},
	})
	return err
}

func (s *Service) settle(ctx context.Context, merchantID uint) {
	if s.Settler == nil {
		return
	}
	if _, err := s.Settler.Settle(ctx, merchantID); err != nil {
		s.logger.Error("settle orders", zap.Uint("merchant_id", merchantID), zap.Error(err))
	}
}

func (s *Service) notifyCompleted(ctx context.Context, wr *models.WithdrawalRequest) {
	if s.Events == nil {
		return
	}
	m, err := s.Merchants.GetByID(ctx, wr.MerchantID)
	if err != nil {
		s.logger.Error("load merchant for withdrawal email", zap.Error(err))
		return
	}
	err = s.Events.Publish(ctx, events.Event{
		Type: events.WithdrawalCompleted,
		To:   m.Email,
		Data: map[string]string{
			"withdrawal_id":    strconv.FormatUint(uint64(wr.ID), 10),
			"amount_cents":     strconv.FormatInt(wr.AmountCents, 10),
			"destination":      wr.Destination,
			"payout_reference": wr.PayoutReference,
		},
	})
	if err != nil {
		s.logger.Error("publish withdrawal completed", zap.Uint("withdrawal_id", wr.ID), zap.Error(err))
	}
}

func (s *Service) record(wr *models.WithdrawalRequest, adminID uint) {
	if s.Metrics != nil {
		s.Metrics.WithdrawalStatus(string(wr.Status))
	}
	s.logger.Info("withdrawal "+string(wr.Status), zap.Uint("withdrawal_id", wr.ID),
		zap.Uint("merchant_id", wr.MerchantID), zap.Int64("amount_cents", wr.AmountCents), zap.Uint("admin_id", adminID))
}

func invalid(wr *models.WithdrawalRequest, action string) error {
	return apperrors.ErrInvalidWithdrawalTransition.WithMessage(
		fmt.Sprintf("a %s withdrawal cannot be %s", wr.Status, action))
}
