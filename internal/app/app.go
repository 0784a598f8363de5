// Package app wires repositories, vendor clients and services into the
// graph shared by the HTTP server and portalctl.
package app

import (
	"net/http"
	"time"

	"portal/internal/clients"
	"portal/internal/config"
	"portal/internal/handlers"
	"portal/internal/metrics"
	"portal/internal/ratelimit"
	"portal/internal/repositories"
	"portal/internal/repositories/cache"
	"portal/internal/routes"
	"portal/internal/services/adminauth"
	"portal/internal/services/auth"
	"portal/internal/services/catalog"
	"portal/internal/services/dashboard"
	"portal/internal/services/events"
	"portal/internal/services/invoice"
	"portal/internal/services/merchant"
	"portal/internal/services/notification"
	"portal/internal/services/order"
	"portal/internal/services/team"
	"portal/internal/services/topup"
	"portal/internal/services/wallet"
	"portal/internal/services/withdrawal"
	cachekeys "portal/internal/utils/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const catalogTTL = 5 * time.Minute

// App holds the wired services.
type App struct {
	Config  *config.Config
	DB      *gorm.DB
	Redis   *redis.Client
	Cache   *cache.CacheService
	Logger  *zap.Logger
	Metrics *metrics.Registry

	Auth          auth.Service
	AdminAuth     *adminauth.Service
	Team          *team.Service
	Merchants     *merchant.Service
	Catalog       catalog.Service
	Orders        *order.Service
	Wallets       wallet.Service
	Topups        *topup.Service
	Withdrawals   *withdrawal.Service
	Invoices      *invoice.Service
	Dashboard     dashboard.Service
	Notifications *notification.Service
	Relay         *events.Relay
}

// New builds the service graph. Optional vendors (Stripe, Mercury,
// ShipStation, Resend) are left unwired when their keys are empty.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, reg *metrics.Registry, logger *zap.Logger) *App {
	httpClient := &http.Client{Timeout: 20 * time.Second}
	tx := repositories.NewTxManager(db)
	cacheSvc := cache.NewCacheService(rdb, catalogTTL)
	publisher := events.NewRedisPublisher(rdb, events.DefaultStream)

	adminRepo := repositories.NewAdminUserRepository(db)
	merchantRepo := repositories.NewMerchantRepository(db)
	productRepo := repositories.NewProductRepository(db)
	pricingRepo := repositories.NewPricingRepository(db)
	lotRepo := repositories.NewLotRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)

	storage := clients.NewSupabaseStorage(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey, httpClient, logger)
	supabaseAuth := clients.NewSupabaseAuth(cfg.Supabase.URL, cfg.Supabase.AnonKey, httpClient, logger)

	var mailer notification.Mailer = notification.NewLogMailer(logger)
	if cfg.Resend.APIKey != "" {
		mailer = notification.NewResendMailer(cfg.Resend.APIKey, cfg.Resend.From)
	}
	notifications := notification.NewService(mailer, cfg.SiteURL, reg, logger)

	a := &App{Config: cfg, DB: db, Redis: rdb, Cache: cacheSvc, Logger: logger, Metrics: reg, Notifications: notifications}

	a.Wallets = wallet.NewService(walletRepo, tx, reg)
	a.Auth = auth.NewService(supabaseAuth, adminRepo, merchantRepo, cfg.SiteURL, cfg.Supabase.JWTSecret, logger)
	a.AdminAuth = adminauth.NewService(adminRepo, tx, ratelimit.New(rdb, 5, 10*time.Minute), notifications, adminauth.Config{
		AccessSecret:  cfg.AdminAuth.JWTSecret,
		RefreshSecret: cfg.AdminAuth.RefreshSecret,
		CodeTTL:       cfg.AdminAuth.CodeTTL,
		MaxAttempts:   cfg.AdminAuth.MaxAttempts,
	}, logger)
	a.Team = team.NewService(adminRepo, tx, publisher, logger)

	a.Catalog = catalog.NewService(catalog.Deps{
		Products:  productRepo,
		Pricing:   pricingRepo,
		Lots:      lotRepo,
		Merchants: merchantRepo,
		Tx:        tx,
		Cache:     cacheSvc,
		Store:     storage,
		COABucket: cfg.Supabase.COABucket,
		Logger:    logger,
	})
	a.Merchants = merchant.NewService(merchant.Deps{
		Merchants: merchantRepo,
		Pricing:   pricingRepo,
		Tx:        tx,
		Wallets:   a.Wallets,
		Catalog:   a.Catalog,
		Store:     storage,
		Events:    publisher,
		KYBBucket: cfg.Supabase.KYBBucket,
		Logger:    logger,
	})

	orderDeps := order.Deps{
		Orders:           orderRepo,
		Products:         productRepo,
		Merchants:        merchantRepo,
		Wallets:          a.Wallets,
		Catalog:          a.Catalog,
		Tx:               tx,
		Cache:            cacheSvc,
		Store:            storage,
		Events:           publisher,
		Metrics:          reg,
		Logger:           logger,
		LabelsBucket:     cfg.Supabase.LabelBucket,
		ShipFrom:         shipFrom(cfg.ShipStation.ShipFrom),
		ShippingFeeCents: cfg.Orders.ShippingFeeCents,
		IdempotencyTTL:   cfg.Orders.IdempotencyTTL,
	}
	if cfg.ShipStation.APIKey != "" {
		orderDeps.Labels = clients.NewShipStation(cfg.ShipStation.BaseURL, cfg.ShipStation.APIKey,
			cfg.ShipStation.APISecret, cfg.ShipStation.TestLabels, httpClient, logger)
	}
	a.Orders = order.NewService(orderDeps)

	var gateway topup.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = clients.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	}
	a.Topups = topup.NewService(gateway, a.Wallets, a.Orders, logger)

	a.Withdrawals = withdrawal.NewService(withdrawal.Deps{
		Withdrawals: withdrawalRepo,
		Merchants:   merchantRepo,
		Wallets:     a.Wallets,
		Tx:          tx,
		Settler:     a.Orders,
		Events:      publisher,
		Metrics:     reg,
		Logger:      logger,
	})

	invoiceDeps := invoice.Deps{
		Invoices:      invoiceRepo,
		Merchants:     merchantRepo,
		Wallets:       a.Wallets,
		Tx:            tx,
		Settler:       a.Orders,
		Events:        publisher,
		WebhookSecret: cfg.Mercury.WebhookSecret,
		Logger:        logger,
	}
	if cfg.Mercury.APIKey != "" {
		invoiceDeps.Gateway = clients.NewMercury(cfg.Mercury.BaseURL, cfg.Mercury.APIKey, cfg.Mercury.AccountID, httpClient, logger)
	}
	a.Invoices = invoice.NewService(invoiceDeps)

	a.Dashboard = dashboard.NewService(orderRepo, walletRepo, merchantRepo, productRepo, withdrawalRepo, invoiceRepo)

	a.Relay = events.NewRelay(rdb, notifications.HandleEvent, logger, events.RelayConfig{
		Stream:      events.DefaultStream,
		Group:       events.DefaultGroup,
		Consumer:    cfg.Events.Consumer,
		MaxAttempts: cfg.Events.MaxAttempts,
		ClaimIdle:   cfg.Events.ClaimIdle,
	})
	return a
}

// Routes returns the handlers and guards for routes.Setup.
func (a *App) Routes() (routes.Handlers, routes.Guards) {
	h := routes.Handlers{
		Auth:        handlers.NewAuthHandler(a.Auth, a.Config.IsProduction()),
		AdminAuth:   handlers.NewAdminAuthHandler(a.AdminAuth),
		Team:        handlers.NewTeamHandler(a.Team),
		Merchant:    handlers.NewMerchantHandler(a.Merchants),
		Admin:       handlers.NewAdminMerchantHandler(a.Merchants),
		Catalog:     handlers.NewCatalogHandler(a.Catalog),
		Orders:      handlers.NewOrderHandler(a.Orders),
		Wallet:      handlers.NewWalletHandler(a.Wallets, a.Topups, a.Orders),
		Withdrawals: handlers.NewWithdrawalHandler(a.Withdrawals),
		Invoices:    handlers.NewInvoiceHandler(a.Invoices),
		Dashboard:   handlers.NewDashboardHandler(a.Dashboard),
		Webhooks:    handlers.NewWebhookHandler(a.Topups, a.Invoices),
	}
	resets := ratelimit.New(a.Redis, 5, 10*time.Minute)
	verifies := ratelimit.New(a.Redis, 10, 10*time.Minute)
	g := routes.Guards{
		Sessions: a.Auth,
		Loader:   a.Merchants,
		Admins:   a.AdminAuth,
		ResetLimit: resets.Middleware(func(c *fiber.Ctx) string {
			return cachekeys.RateLimitKey(cachekeys.KeyIP, "password_reset", c.IP())
		}),
		VerifyLimit: verifies.Middleware(func(c *fiber.Ctx) string {
			return cachekeys.RateLimitKey(cachekeys.KeyIP, "admin_verify", c.IP())
		}),
	}
	return h, g
}

func shipFrom(a config.Address) clients.ShipStationAddress {
	return clients.ShipStationAddress{
		Name:       a.Name,
		Company:    a.Company,
		Street1:    a.Street1,
		Street2:    a.Street2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
