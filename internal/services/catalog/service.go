// Package catalog manages products, stock, merchant pricing and lot
// certificates.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/repositories/cache"
	"portal/internal/services/files"
	cachekeys "portal/internal/utils/cache"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const CatalogTTL = 5 * time.Minute

type Service interface {
	CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uint, in ProductUpdate) (*models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context, filter repositories.ProductFilter, limit, offset int) ([]models.Product, int64, error)
	DeactivateProduct(ctx context.Context, id uint) error

	AdjustInventory(ctx context.Context, productID uint, in InventoryInput, adminID uint) (*models.Product, error)
	ListAdjustments(ctx context.Context, productID uint, limit, offset int) ([]models.InventoryAdjustment, int64, error)
	LowStock(ctx context.Context) ([]models.Product, error)

	ListTiers(ctx context.Context) ([]models.PricingTier, error)
	SaveTier(ctx context.Context, name string, in TierInput) (*models.PricingTier, error)
	MerchantPrices(ctx context.Context, merchantID uint) ([]MerchantPriceView, error)
	SetMerchantPrices(ctx context.Context, merchantID uint, overrides []PriceOverride) ([]MerchantPriceView, error)
	EffectivePrices(ctx context.Context, merchant *models.Merchant, products []*models.Product) (map[uint]int64, error)

	CreateLot(ctx context.Context, productID uint, in LotInput) (*models.Lot, error)
	ListLots(ctx context.Context, productID uint) ([]models.Lot, error)
	UploadCOA(ctx context.Context, lotID uint, fileName string, data []byte) (*models.Lot, error)
	ReleaseLot(ctx context.Context, lotID uint) (*models.Lot, error)
	COAURL(ctx context.Context, productID uint) (string, error)

	MerchantCatalog(ctx context.Context, merchant *models.Merchant) ([]CatalogItem, error)
	SaveListing(ctx context.Context, merchant *models.Merchant, productID uint, in ListingInput) (*models.MerchantListing, error)
	// InvalidateCatalog drops one merchant's cached catalog, or every
	// catalog when merchantID is 0.
	InvalidateCatalog(ctx context.Context, merchantID uint)
}

type Deps struct {
	Products  repositories.ProductRepository
	Pricing   repositories.PricingRepository
	Lots      repositories.LotRepository
	Merchants repositories.MerchantRepository
	Tx        repositories.TxManager
	Cache     *cache.CacheService
	Store     files.Store
	COABucket string
	Logger    *zap.Logger
}

type service struct {
	Deps
	logger *zap.Logger
}

func NewService(d Deps) Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &service{Deps: d, logger: d.Logger.Named("catalog")}
}

func (s *service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	p := &models.Product{
		SKU:               in.SKU,
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Category:          in.Category,
		Unit:              in.Unit,
		BasePriceCents:    in.BasePriceCents,
		MSRPCents:         in.MSRPCents,
		StockOnHand:       in.StockOnHand,
		LowStockThreshold: 10,
		Active:            true,
	}
	if in.LowStockThreshold != nil {
		p.LowStockThreshold = *in.LowStockThreshold
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if p.BasePriceCents < 0 || p.MSRPCents < 0 || p.StockOnHand < 0 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("prices and stock must not be negative")
	}

	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		sl, err := s.uniqueSlug(ctx, p.Name, 0)
		if err != nil {
			return err
		}
		p.Slug = sl
		if err := s.Products.Create(ctx, p); err != nil {
			return err
		}
		if p.StockOnHand > 0 {
			return s.Products.AddAdjustment(ctx, &models.InventoryAdjustment{
				ProductID:  p.ID,
				Delta:      p.StockOnHand,
				StockAfter: p.StockOnHand,
				Reason:     "initial stock",
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, 0)
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uint, in ProductUpdate) (*models.Product, error) {
	var out *models.Product
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.Products.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.SKU != nil {
			p.SKU = *in.SKU
		}
		if in.Name != nil && strings.TrimSpace(*in.Name) != p.Name {
			p.Name = strings.TrimSpace(*in.Name)
			if p.Slug, err = s.uniqueSlug(ctx, p.Name, p.ID); err != nil {
				return err
			}
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Category != nil {
			p.Category = *in.Category
		}
		if in.Unit != nil {
			p.Unit = *in.Unit
		}
		if in.BasePriceCents != nil {
			p.BasePriceCents = *in.BasePriceCents
		}
		if in.MSRPCents != nil {
			p.MSRPCents = *in.MSRPCents
		}
		if in.LowStockThreshold != nil {
			p.LowStockThreshold = *in.LowStockThreshold
		}
		if in.Active != nil {
			p.Active = *in.Active
		}
		if p.BasePriceCents < 0 || p.MSRPCents < 0 {
			return apperrors.ErrInvalidRequest.WithMessage("prices must not be negative")
		}
		if err := s.Products.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, 0)
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.Products.GetByID(ctx, id)
}

func (s *service) ListProducts(ctx context.Context, filter repositories.ProductFilter, limit, offset int) ([]models.Product, int64, error) {
	return s.Products.List(ctx, filter, limit, offset)
}

// DeactivateProduct hides a product. Orders keep their item snapshots.
func (s *service) DeactivateProduct(ctx context.Context, id uint) error {
	f := false
	_, err := s.UpdateProduct(ctx, id, ProductUpdate{Active: &f})
	return err
}

func (s *service) AdjustInventory(ctx context.Context, productID uint, in InventoryInput, adminID uint) (*models.Product, error) {
	if in.Delta == 0 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("delta must not be zero")
	}
	var out *models.Product
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.Products.GetByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		stock := p.StockOnHand + in.Delta
		if stock < 0 {
			return apperrors.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("only %d units of %s on hand", p.StockOnHand, p.SKU))
		}
		if err := s.Products.SetStock(ctx, p.ID, stock); err != nil {
			return err
		}
		p.StockOnHand = stock
		admin := adminID
		if err := s.Products.AddAdjustment(ctx, &models.InventoryAdjustment{
			ProductID:   p.ID,
			Delta:       in.Delta,
			StockAfter:  stock,
			Reason:      strings.TrimSpace(in.Reason),
			AdminUserID: &admin,
		}); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, 0)
	return out, nil
}

func (s *service) ListAdjustments(ctx context.Context, productID uint, limit, offset int) ([]models.InventoryAdjustment, int64, error) {
	if _, err := s.Products.GetByID(ctx, productID); err != nil {
		return nil, 0, err
	}
	return s.Products.ListAdjustments(ctx, productID, limit, offset)
}

func (s *service) LowStock(ctx context.Context) ([]models.Product, error) {
	return s.Products.ListLowStock(ctx)
}

// uniqueSlug derives a slug from name, appending -2, -3, ... when taken.
func (s *service) uniqueSlug(ctx context.Context, name string, excludeID uint) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "product"
	}
	candidate := base
	for i := 2; i <= 50; i++ {
		taken, err := s.Products.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func (s *service) InvalidateCatalog(ctx context.Context, merchantID uint) {
	if s.Cache == nil {
		return
	}
	var err error
	if merchantID == 0 {
		err = s.Cache.DeleteMany(ctx, cachekeys.CatalogPattern())
	} else {
		err = s.Cache.Delete(ctx, cachekeys.CatalogKey(merchantID))
	}
	if err != nil {
		s.logger.Warn("invalidate catalog cache", zap.Uint("merchant_id", merchantID), zap.Error(err))
	}
}
