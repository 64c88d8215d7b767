package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/announcements"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/messaging"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/migration"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/scheduling"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/database"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/handlers"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/logging"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/middleware"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/routes"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/services"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/tenant"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// University registry: optional seed file, then rows from the database
	registry := tenant.NewRegistry()
	if cfg.UniversitiesConfigPath != "" {
		var err error
		registry, err = tenant.LoadFromFile(cfg.UniversitiesConfigPath)
		if err != nil {
			slog.Error("failed to load university registry", "path", cfg.UniversitiesConfigPath, "error", err)
			os.Exit(1)
		}
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.MigrateShared(); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.NewStdoutHandler(os.Stdout, cfg.LogLevel),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Services
	userService := services.NewUserService(database.DB)
	authService := services.NewAuthService(database.DB, cfg, userService, registry)
	universityService := services.NewUniversityService(database.DB, registry)
	acknowledgmentService := services.NewAcknowledgmentService(userService, authService)

	loaded, err := universityService.LoadRegistry(context.Background())
	if err != nil {
		slog.Error("failed to load universities", "error", err)
		os.Exit(1)
	}
	slog.Info("university registry loaded", "from_db", loaded, "total", len(registry.All()))

	plugins := []apps.Plugin{
		scheduling.New(userService),
		announcements.New(),
		messaging.New(userService),
		migration.New(),
	}

	for _, p := range plugins {
		if models := p.Models(); len(models) > 0 {
			if err := database.MigrateModels(models); err != nil {
				slog.Error("plugin migration failed", "plugin", p.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("plugin migrated", "plugin", p.ID(), "models", len(models))
		}
	}

	h := routes.Handlers{
		Auth:           handlers.NewAuthHandler(authService),
		Health:         handlers.NewHealthHandler(registry, database.Ping),
		Users:          handlers.NewUserHandler(userService),
		Universities:   handlers.NewUniversityHandler(universityService),
		Acknowledgment: handlers.NewAcknowledgmentHandler(acknowledgmentService),
	}
	identityCfg := middleware.IdentityConfig{
		DefaultTenant: cfg.DefaultTenantPath,
		Registry:      registry,
		Accounts:      authService,
		Directory:     userService,
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, cfg, database.DB, h, identityCfg, plugins)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

// customErrorHandler renders errors that escape handlers in the same
// envelope as dto.Fail.
func customErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := apperr.Internal
		switch {
		case fe.Code == fiber.StatusNotFound:
			kind = apperr.NotFound
		case fe.Code == fiber.StatusUnauthorized:
			kind = apperr.Unauthenticated
		case fe.Code == fiber.StatusForbidden:
			kind = apperr.PermissionDenied
		case fe.Code >= 400 && fe.Code < 500:
			kind = apperr.InvalidArgument
		}
		if kind != apperr.Internal {
			return c.Status(fe.Code).JSON(dto.Response{
				Success: false,
				Error:   &dto.ErrorBody{Kind: kind, Message: fe.Message},
			})
		}
	}

	// dto.Fail logs and masks anything without a client-facing kind.
	return dto.Fail(c, err)
}
