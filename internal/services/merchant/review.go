package merchant

import (
	"context"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/files"

	"go.uber.org/zap"
)

func (s *Service) List(ctx context.Context, filter repositories.MerchantFilter, limit, offset int) ([]models.Merchant, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperrors.ErrInvalidRequest.WithMessage("unknown status")
	}
	return s.d.Merchants.List(ctx, filter, limit, offset)
}

// Detail loads a merchant with short-lived links to each document.
func (s *Service) Detail(ctx context.Context, id uint) (*models.Merchant, error) {
	m, err := s.d.Merchants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.d.Merchants.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		url, err := s.d.Store.SignedURL(ctx, s.d.KYBBucket, docs[i].StoragePath, files.SignedURLTTL)
		if err != nil {
			s.logger.Warn("sign document url", zap.Uint("document_id", docs[i].ID), zap.Error(err))
			continue
		}
		docs[i].SignedURL = url
	}
	m.Documents = docs
	return m, nil
}

func (s *Service) StartReview(ctx context.Context, id, adminID uint) (*models.Merchant, error) {
	return s.transition(ctx, id, func(m *models.Merchant) error {
		if m.KYBStatus != models.KYBStatusSubmitted {
			return apperrors.ErrInvalidKYBTransition
		}
		m.KYBStatus = models.KYBStatusInReview
		m.KYBReviewerID = &adminID
		return nil
	})
}

// Decide records a KYB decision. Approval provisions the wallet in the same
// transaction.
func (s *Service) Decide(ctx context.Context, id, adminID uint, in DecisionInput) (*models.Merchant, error) {
	next, ok := in.Decision.status()
	if !ok {
		return nil, apperrors.ErrInvalidRequest.WithMessage("decision must be approve, reject or request_info")
	}
	notes := strings.TrimSpace(in.Notes)
	if next != models.KYBStatusApproved && notes == "" {
		return nil, apperrors.ErrNotesRequired
	}

	m, err := s.transition(ctx, id, func(m *models.Merchant) error {
		if m.KYBStatus != models.KYBStatusSubmitted && m.KYBStatus != models.KYBStatusInReview {
			return apperrors.ErrInvalidKYBTransition
		}
		now := s.now().UTC()
		m.KYBStatus = next
		m.KYBNotes = notes
		m.KYBDecidedAt = &now
		m.KYBReviewerID = &adminID
		return nil
	}, func(ctx context.Context, m *models.Merchant) error {
		if next != models.KYBStatusApproved {
			return nil
		}
		_, err := s.d.Wallets.EnsureWallet(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("kyb decided", zap.Uint("merchant_id", id), zap.String("status", string(next)), zap.Uint("admin_id", adminID))
	s.publish(ctx, kybEvent(m))
	return m, nil
}

func (s *Service) Suspend(ctx context.Context, id, adminID uint, notes string) (*models.Merchant, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.ErrNotesRequired
	}
	return s.transition(ctx, id, func(m *models.Merchant) error {
		if !m.KYBStatus.CanTransition(models.KYBStatusSuspended) {
			return apperrors.ErrInvalidKYBTransition
		}
		m.KYBStatus = models.KYBStatusSuspended
		m.KYBNotes = notes
		m.KYBReviewerID = &adminID
		return nil
	})
}

func (s *Service) Reinstate(ctx context.Context, id, adminID uint) (*models.Merchant, error) {
	return s.transition(ctx, id, func(m *models.Merchant) error {
		if m.KYBStatus != models.KYBStatusSuspended {
			return apperrors.ErrInvalidKYBTransition
		}
		m.KYBStatus = models.KYBStatusApproved
		m.KYBNotes = ""
		m.KYBReviewerID = &adminID
		return nil
	})
}

func (s *Service) SetPricingTier(ctx context.Context, id uint, tier string) (*models.Merchant, error) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if _, err := s.d.Pricing.GetTier(ctx, tier); err != nil {
		return nil, err
	}
	m, err := s.transition(ctx, id, func(m *models.Merchant) error {
		m.PricingTier = tier
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.d.Catalog != nil {
		s.d.Catalog.InvalidateCatalog(ctx, id)
	}
	return m, nil
}

// transition locks the merchant, applies mutate and saves. after hooks run
// inside the same transaction.
func (s *Service) transition(ctx context.Context, id uint, mutate func(m *models.Merchant) error, after ...func(ctx context.Context, m *models.Merchant) error) (*models.Merchant, error) {
	var out *models.Merchant
	err := s.d.Tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.d.Merchants.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(m); err != nil {
			return err
		}
		if err := s.d.Merchants.Update(ctx, m); err != nil {
			return err
		}
		for _, f := range after {
			if err := f(ctx, m); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
