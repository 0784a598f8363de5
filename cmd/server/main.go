// Package main is the entry point for the portal API.
// It loads configuration, connects Postgres and Redis, mounts the routes,
// runs the notification relay and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"portal/internal/app"
	"portal/internal/config"
	"portal/internal/handlers"
	"portal/internal/logging"
	"portal/internal/metrics"
	"portal/internal/repositories"
	"portal/internal/repositories/cache"
	"portal/internal/routes"
	"portal/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

const (
	version = "1.0.0"
	// Uploads are capped at 10 MB; leave room for the multipart envelope.
	bodyLimit = 12 << 20
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Log.Level, cfg.Server.Env, "portal-api")
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	logger.Info("starting portal api", cfg.LogFields()...)

	db, err := repositories.Open(cfg.DB, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := repositories.Ping(context.Background(), db); err != nil {
		logger.Fatal("database ping", zap.Error(err))
	}
	logger.Info("connected to database")

	rdb := cache.NewRedisClient(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("redis ping", zap.Error(err))
	}

	reg := metrics.New()
	a := app.New(cfg, db, rdb, reg, logger)

	server := fiber.New(fiber.Config{
		AppName:      "portal",
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			return utils.Fail(c, err)
		},
	})

	server.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
	server.Use(requestid.New())
	server.Use(logging.Middleware("/health", "/metrics"))
	server.Use(reg.Middleware())
	server.Use(cors.New(cors.Config{
		AllowOrigins:     strings.ReplaceAll(cfg.Server.CORSOrigins, " ", ""),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	health := handlers.NewHealthHandler(version, map[string]handlers.Pinger{
		"database": func(ctx context.Context) error { return repositories.Ping(ctx, db) },
		"redis":    a.Cache.HealthCheck,
	})
	server.Get("/health", health.Check)
	server.Get("/metrics", reg.Handler())

	h, g := a.Routes()
	routes.Setup(server, h, g)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		a.Relay.Run(relayCtx)
	}()

	go func() {
		if err := server.Listen(":" + cfg.Server.Port); err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	stopRelay()
	<-relayDone
	if err := server.ShutdownWithTimeout(cfg.Server.ShutdownGrace); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := repositories.Close(db); err != nil {
		logger.Warn("close database", zap.Error(err))
	}
	if err := a.Cache.Close(); err != nil {
		logger.Warn("close redis", zap.Error(err))
	}
	logger.Info("stopped")
}
