package catalog

import (
	"context"
	"fmt"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/services/files"

	"go.uber.org/zap"
)

func (s *service) CreateLot(ctx context.Context, productID uint, in LotInput) (*models.Lot, error) {
	if !in.ExpiresAt.After(in.ManufacturedAt) {
		return nil, apperrors.ErrInvalidLotDates
	}
	if in.PurityPercent < 0 || in.PurityPercent > 100 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("purity_percent must be between 0 and 100")
	}
	if _, err := s.Products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	lot := &models.Lot{
		ProductID:      productID,
		LotNumber:      strings.ToUpper(strings.TrimSpace(in.LotNumber)),
		ManufacturedAt: in.ManufacturedAt.UTC(),
		ExpiresAt:      in.ExpiresAt.UTC(),
		PurityPercent:  in.PurityPercent,
		Quantity:       in.Quantity,
	}
	if err := s.Lots.Create(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *service) ListLots(ctx context.Context, productID uint) ([]models.Lot, error) {
	if _, err := s.Products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.Lots.ListByProduct(ctx, productID)
}

// UploadCOA stores a PDF certificate and attaches it to the lot, replacing
// any earlier file.
func (s *service) UploadCOA(ctx context.Context, lotID uint, fileName string, data []byte) (*models.Lot, error) {
	lot, err := s.Lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if _, err := files.Detect(data, files.ContentTypePDF); err != nil {
		return nil, apperrors.ErrInvalidCOA
	}
	objectPath := files.ObjectPath(fmt.Sprintf("%d/%s", lot.ProductID, lot.LotNumber), fileName)
	if err := s.Store.Upload(ctx, s.COABucket, objectPath, files.ContentTypePDF, data); err != nil {
		return nil, err
	}

	previous := lot.COAPath
	lot.COAPath = objectPath
	lot.HasCOA = true
	if err := s.Lots.Update(ctx, lot); err != nil {
		return nil, err
	}
	if previous != "" {
		if err := s.Store.Remove(ctx, s.COABucket, previous); err != nil {
			s.logger.Warn("remove replaced coa", zap.String("path", previous), zap.Error(err))
		}
	}
	if lot.Released {
		s.InvalidateCatalog(ctx, 0)
	}
	return lot, nil
}

func (s *service) ReleaseLot(ctx context.Context, lotID uint) (*models.Lot, error) {
	lot, err := s.Lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.COAPath == "" {
		return nil, apperrors.ErrCOAMissing.WithMessage("upload a certificate of analysis before releasing the lot")
	}
	if lot.Released {
		return lot, nil
	}
	lot.Released = true
	if err := s.Lots.Update(ctx, lot); err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, 0)
	return lot, nil
}

// COAURL signs the certificate of the newest released lot.
func (s *service) COAURL(ctx context.Context, productID uint) (string, error) {
	p, err := s.Products.GetByID(ctx, productID)
	if err != nil {
		return "", err
	}
	if !p.Active {
		return "", apperrors.ErrProductNotFound
	}
	lot, err := s.Lots.LatestReleasedWithCOA(ctx, productID)
	if err != nil {
		return "", err
	}
	return s.Store.SignedURL(ctx, s.COABucket, lot.COAPath, files.SignedURLTTL)
}
