package catalog

import (
	"context"

	apperrors "portal/internal/errors"
	"portal/internal/models"
	"portal/internal/repositories"
	cachekeys "portal/internal/utils/cache"

	"go.uber.org/zap"
)

var filterAll = repositories.ProductFilter{}

// MerchantCatalog lists active products priced for merchant. Results are
// cached until a product, price, tier or listing changes.
func (s *service) MerchantCatalog(ctx context.Context, merchant *models.Merchant) ([]CatalogItem, error) {
	key := cachekeys.CatalogKey(merchant.ID)
	if s.Cache != nil {
		var cached []CatalogItem
		hit, err := s.Cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("read catalog cache", zap.Uint("merchant_id", merchant.ID), zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}

	products, _, err := s.Products.List(ctx, repositories.ProductFilter{ActiveOnly: true}, 0, 0)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*models.Product, len(products))
	for i := range products {
		ptrs[i] = &products[i]
	}
	prices, err := s.EffectivePrices(ctx, merchant, ptrs)
	if err != nil {
		return nil, err
	}
	withCOA, err := s.Lots.ProductIDsWithCOA(ctx)
	if err != nil {
		return nil, err
	}
	listings, err := s.Pricing.ListListings(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[uint]*Listing, len(listings))
	for _, l := range listings {
		byProduct[l.ProductID] = &Listing{RetailPriceCents: l.RetailPriceCents, Active: l.Active}
	}

	items := make([]CatalogItem, 0, len(products))
	for _, p := range products {
		items = append(items, CatalogItem{
			ProductID:    p.ID,
			SKU:          p.SKU,
			Name:         p.Name,
			Slug:         p.Slug,
			Description:  p.Description,
			Category:     p.Category,
			Unit:         p.Unit,
			MSRPCents:    p.MSRPCents,
			PriceCents:   prices[p.ID],
			Availability: p.Availability(),
			HasCOA:       withCOA[p.ID],
			Listing:      byProduct[p.ID],
		})
	}

	if s.Cache != nil {
		if err := s.Cache.SetWithTTL(ctx, key, items, CatalogTTL); err != nil {
			s.logger.Warn("write catalog cache", zap.Uint("merchant_id", merchant.ID), zap.Error(err))
		}
	}
	return items, nil
}

func (s *service) SaveListing(ctx context.Context, merchant *models.Merchant, productID uint, in ListingInput) (*models.MerchantListing, error) {
	if in.RetailPriceCents < 0 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("retail_price_cents must not be negative")
	}
	p, err := s.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperrors.ErrProductInactive
	}
	listing := &models.MerchantListing{
		MerchantID:       merchant.ID,
		ProductID:        productID,
		RetailPriceCents: in.RetailPriceCents,
		Active:           in.Active,
	}
	if err := s.Pricing.UpsertListing(ctx, listing); err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, merchant.ID)
	return listing, nil
}
