// Package merchant runs merchant onboarding and the KYB review workflow.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/services/events"
	"portal/internal/services/files"

	"go.uber.org/zap"
)

// WalletProvisioner creates the wallet of a newly approved merchant.
type WalletProvisioner interface {
	EnsureWallet(ctx context.Context, merchantID uint) (*models.Wallet, error)
}

// CatalogInvalidator drops cached merchant catalogs.
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context, merchantID uint)
}

type Deps struct {
	Merchants repositories.MerchantRepository
	Pricing   repositories.PricingRepository
	Tx        repositories.TxManager
	Wallets   WalletProvisioner
	Catalog   CatalogInvalidator
	Store     files.Store
	Events    events.Publisher
	KYBBucket string
	Logger    *zap.Logger
}

type Service struct {
	d      Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{d: d, logger: d.Logger.Named("merchant"), now: time.Now}
}

// Profile returns the merchant owned by a Supabase user.
func (s *Service) Profile(ctx context.Context, authUserID string) (*models.Merchant, error) {
	return s.d.Merchants.GetByAuthUserID(ctx, authUserID)
}

// SaveOnboarding creates or updates the caller's business profile.
func (s *Service) SaveOnboarding(ctx context.Context, session *models.SessionClaims, in OnboardingInput) (*models.Merchant, error) {
	m, err := s.d.Merchants.GetByAuthUserID(ctx, session.UserID())
	creating := errors.Is(err, apperrors.ErrMerchantNotFound)
	if err != nil && !creating {
		return nil, err
	}
	if creating {
		m = &models.Merchant{
			AuthUserID:  session.UserID(),
			Email:       session.Email,
			KYBStatus:   models.KYBStatusDraft,
			PricingTier: models.DefaultPricingTier,
		}
	} else if !m.KYBStatus.Editable() {
		return nil, apperrors.ErrOnboardingLocked
	}

	m.LegalName = strings.TrimSpace(in.LegalName)
	m.DBAName = strings.TrimSpace(in.DBAName)
	m.BrandName = strings.TrimSpace(in.BrandName)
	m.EIN = in.EIN
	m.BusinessType = in.BusinessType
	m.Phone = strings.TrimSpace(in.Phone)
	m.Website = strings.TrimSpace(in.Website)
	m.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	m.AddressLine2 = strings.TrimSpace(in.AddressLine2)
	m.City = strings.TrimSpace(in.City)
	m.State = strings.TrimSpace(in.State)
	m.PostalCode = strings.TrimSpace(in.PostalCode)
	m.Country = strings.ToUpper(in.Country)
	if m.Country == "" {
		m.Country = "US"
	}
	m.OnboardingCompleted = m.ProfileComplete()

	if creating {
		if err := s.d.Merchants.Create(ctx, m); err != nil {
			if repositories.IsUniqueViolation(err) {
				return nil, apperrors.ErrMerchantExists
			}
			return nil, err
		}
		s.logger.Info("merchant created", zap.Uint("merchant_id", m.ID))
		return m, nil
	}
	if err := s.d.Merchants.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UploadDocument stores a KYB file while the profile is still editable.
func (s *Service) UploadDocument(ctx context.Context, m *models.Merchant, docType models.DocumentType, fileName string, data []byte) (*models.KYBDocument, error) {
	if !docType.Valid() {
		return nil, apperrors.ErrInvalidRequest.WithMessage("unknown doc_type")
	}
	if !m.KYBStatus.Editable() {
		return nil, apperrors.ErrOnboardingLocked
	}
	contentType, err := files.Detect(data, files.ContentTypePDF, files.ContentTypePNG, files.ContentTypeJPEG)
	if err != nil {
		return nil, err
	}
	objectPath := files.ObjectPath(strconv.FormatUint(uint64(m.ID), 10), fileName)
	if err := s.d.Store.Upload(ctx, s.d.KYBBucket, objectPath, contentType, data); err != nil {
		return nil, err
	}
	doc := &models.KYBDocument{
		MerchantID:  m.ID,
		DocType:     docType,
		StoragePath: objectPath,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
	}
	if err := s.d.Merchants.AddDocument(ctx, doc); err != nil {
		if rmErr := s.d.Store.Remove(ctx, s.d.KYBBucket, objectPath); rmErr != nil {
			s.logger.Warn("remove orphaned document", zap.String("path", objectPath), zap.Error(rmErr))
		}
		return nil, err
	}
	return doc, nil
}

func (s *Service) KYB(ctx context.Context, m *models.Merchant) (*KYBView, error) {
	docs, err := s.d.Merchants.ListDocuments(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return &KYBView{
		Status:      m.KYBStatus,
		Notes:       m.KYBNotes,
		SubmittedAt: m.KYBSubmittedAt,
		DecidedAt:   m.KYBDecidedAt,
		Onboarded:   m.OnboardingCompleted,
		Documents:   docs,
		Missing:     missingDocuments(docs),
	}, nil
}

// Submit sends a complete profile for review.
func (s *Service) Submit(ctx context.Context, merchantID uint) (*models.Merchant, error) {
	var out *models.Merchant
	err := s.d.Tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.d.Merchants.GetByIDForUpdate(ctx, merchantID)
		if err != nil {
			return err
		}
		if !m.KYBStatus.CanTransition(models.KYBStatusSubmitted) {
			return apperrors.ErrInvalidKYBTransition
		}
		if !m.OnboardingCompleted || !m.ProfileComplete() {
			return apperrors.ErrOnboardingIncomplete
		}
		docs, err := s.d.Merchants.ListDocuments(ctx, m.ID)
		if err != nil {
			return err
		}
		if missing := missingDocuments(docs); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, d := range missing {
				names[i] = string(d)
			}
			return apperrors.ErrMissingDocuments.WithMessage("missing documents: " + strings.Join(names, ", "))
		}
		now := s.now().UTC()
		m.KYBStatus = models.KYBStatusSubmitted
		m.KYBSubmittedAt = &now
		if err := s.d.Merchants.Update(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("kyb submitted", zap.Uint("merchant_id", merchantID))
	return out, nil
}

func missingDocuments(docs []models.KYBDocument) []models.DocumentType {
	have := make(map[models.DocumentType]bool, len(docs))
	for _, d := range docs {
		have[d.DocType] = true
	}
	missing := []models.DocumentType{}
	for _, req := range models.RequiredDocuments {
		if !have[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

func kybEvent(m *models.Merchant) events.Event {
	decision := string(m.KYBStatus)
	return events.Event{
		Type: events.KYBDecided,
		To:   m.Email,
		Data: map[string]string{
			"merchant_id": fmt.Sprint(m.ID),
			"decision":    decision,
			"notes":       m.KYBNotes,
		},
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.d.Events == nil {
		return
	}
	if err := s.d.Events.Publish(ctx, e); err != nil {
		s.logger.Error("publish event", zap.String("type", e.Type), zap.Error(err))
	}
}
