package catalog

import (
	"context"
	"errors"
	"strings"

	apperrors "portal/internal/errors"
	"portal/internal/models"
)

// EffectivePrice applies a tier discount in basis points, rounding half
// up to the cent. An override wins over the tier.
func EffectivePrice(baseCents int64, discountBPS int, override *int64) int64 {
	if override != nil {
		return *override
	}
	if discountBPS <= 0 {
		return baseCents
	}
	if discountBPS > 10000 {
		discountBPS = 10000
	}
	return (baseCents*int64(10000-discountBPS) + 5000) / 10000
}

func (s *service) ListTiers(ctx context.Context) ([]models.PricingTier, error) {
	return s.Pricing.ListTiers(ctx)
}

func (s *service) SaveTier(ctx context.Context, name string, in TierInput) (*models.PricingTier, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || len(name) > 50 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("tier name must be 1 to 50 characters")
	}
	if in.DiscountBPS < 0 || in.DiscountBPS > 10000 {
		return nil, apperrors.ErrInvalidRequest.WithMessage("discount_bps must be between 0 and 10000")
	}
	tier := &models.PricingTier{Name: name, DiscountBPS: in.DiscountBPS, Description: in.Description}
	if err := s.Pricing.UpsertTier(ctx, tier); err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, 0)
	return s.Pricing.GetTier(ctx, name)
}

// tierDiscount returns 0 for a tier that does not exist.
func (s *service) tierDiscount(ctx context.Context, name string) (int, error) {
	tier, err := s.Pricing.GetTier(ctx, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrTierNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return tier.DiscountBPS, nil
}

func (s *service) overrides(ctx context.Context, merchantID uint) (map[uint]int64, error) {
	prices, err := s.Pricing.ListMerchantPrices(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(prices))
	for _, p := range prices {
		out[p.ProductID] = p.PriceCents
	}
	return out, nil
}

func (s *service) EffectivePrices(ctx context.Context, merchant *models.Merchant, products []*models.Product) (map[uint]int64, error) {
	bps, err := s.tierDiscount(ctx, merchant.PricingTier)
	if err != nil {
		return nil, err
	}
	ovr, err := s.overrides(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(products))
	for _, p := range products {
		out[p.ID] = EffectivePrice(p.BasePriceCents, bps, lookup(ovr, p.ID))
	}
	return out, nil
}

func (s *service) MerchantPrices(ctx context.Context, merchantID uint) ([]MerchantPriceView, error) {
	merchant, err := s.Merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	bps, err := s.tierDiscount(ctx, merchant.PricingTier)
	if err != nil {
		return nil, err
	}
	ovr, err := s.overrides(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	products, _, err := s.Products.List(ctx, filterAll, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]MerchantPriceView, 0, len(products))
	for _, p := range products {
		o := lookup(ovr, p.ID)
		out = append(out, MerchantPriceView{
			ProductID:           p.ID,
			SKU:                 p.SKU,
			Name:                p.Name,
			BasePriceCents:      p.BasePriceCents,
			TierPriceCents:      EffectivePrice(p.BasePriceCents, bps, nil),
			OverrideCents:       o,
			EffectivePriceCents: EffectivePrice(p.BasePriceCents, bps, o),
		})
	}
	return out, nil
}

func (s *service) SetMerchantPrices(ctx context.Context, merchantID uint, overrides []PriceOverride) ([]MerchantPriceView, error) {
	if _, err := s.Merchants.GetByID(ctx, merchantID); err != nil {
		return nil, err
	}
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, o := range overrides {
			if _, err := s.Products.GetByID(ctx, o.ProductID); err != nil {
				return err
			}
			if o.PriceCents == nil {
				if err := s.Pricing.DeleteMerchantPrice(ctx, merchantID, o.ProductID); err != nil {
					return err
				}
				continue
			}
			if *o.PriceCents < 0 {
				return apperrors.ErrInvalidRequest.WithMessage("price_cents must not be negative")
			}
			if err := s.Pricing.UpsertMerchantPrice(ctx, &models.MerchantPrice{
				MerchantID: merchantID,
				ProductID:  o.ProductID,
				PriceCents: *o.PriceCents,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCatalog(ctx, merchantID)
	return s.MerchantPrices(ctx, merchantID)
}

func lookup(m map[uint]int64, id uint) *int64 {
	v, ok := m[id]
	if !ok {
		return nil
	}
	return &v
}
