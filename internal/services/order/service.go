// Package order places drop-ship orders against a merchant's prepaid wallet
// and moves them through fulfilment.
package order

import (
	"context"
	"time"

	"portal/internal/clients"
	"portal/internal/models"
	"portal/internal/repositories"
	"portal/internal/repositories/cache"
	"portal/internal/services/events"
	"portal/internal/services/files"
	"portal/internal/services/wallet"

	"go.uber.org/zap"
)

// Pricer is the part of the catalog service orders depend on.
type Pricer interface {
	EffectivePrices(ctx context.Context, merchant *models.Merchant, products []*models.Product) (map[uint]int64, error)
	InvalidateCatalog(ctx context.Context, merchantID uint)
}

// LabelProvider is satisfied by *clients.ShipStation.
type LabelProvider interface {
	CreateLabel(ctx context.Context, req clients.LabelRequest) (*clients.Label, error)
}

// Metrics is satisfied by *metrics.Registry.
type Metrics interface {
	OrderStatus(status string)
}

type noopMetrics struct{}

func (noopMetrics) OrderStatus(string) {}

type Deps struct {
	Orders    repositories.OrderRepository
	Products  repositories.ProductRepository
	Merchants repositories.MerchantRepository
	Wallets   wallet.Service
	Catalog   Pricer
	Tx        repositories.TxManager
	Cache     *cache.CacheService
	Labels    LabelProvider
	Store     files.Store
	Events    events.Publisher
	Metrics   Metrics
	Logger    *zap.Logger

	LabelsBucket     string
	ShipFrom         clients.ShipStationAddress
	ShippingFeeCents int64
	IdempotencyTTL   time.Duration
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
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	if d.LabelsBucket == "" {
		d.LabelsBucket = "labels"
	}
	return &Service{Deps: d, logger: d.Logger.Named("order"), now: time.Now}
}

func (s *Service) ListForMerchant(ctx context.Context, merchantID uint, status models.OrderStatus, limit, offset int) ([]models.Order, int64, error) {
	return s.Orders.List(ctx, repositories.OrderFilter{MerchantID: merchantID, Status: status}, limit, offset)
}

// GetForMerchant hides other merchants' orders behind ErrOrderNotFound.
func (s *Service) GetForMerchant(ctx context.Context, merchantID, id uint) (*models.Order, error) {
	return s.Orders.GetForMerchant(ctx, merchantID, id)
}

func (s *Service) List(ctx context.Context, filter repositories.OrderFilter, limit, offset int) ([]models.Order, int64, error) {
	return s.Orders.List(ctx, filter, limit, offset)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	return s.Orders.GetByID(ctx, id)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		s.logger.Error("publish event", zap.String("type", e.Type), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.Catalog != nil {
		s.Catalog.InvalidateCatalog(ctx, 0)
	}
}
