package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/joho/godotenv"

	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/backup"
	"github.com/alohasecurity/aloha-backend/internal/config"
	"github.com/alohasecurity/aloha-backend/internal/database"
	"github.com/alohasecurity/aloha-backend/internal/handlers"
	"github.com/alohasecurity/aloha-backend/internal/logging"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/alohasecurity/aloha-backend/internal/retention"
	"github.com/alohasecurity/aloha-backend/internal/routes"
	"github.com/alohasecurity/aloha-backend/internal/services"
	"github.com/alohasecurity/aloha-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()

	// Structured logging (JSON to stdout, optionally a rotated file)
	consoleHandler := logging.Setup(cfg.LogLevel, cfg.LogFile)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	// Database
	store, err := database.Open(cfg.DatabasePath(), database.Migrate)
	if err != nil {
		slog.Error("database connection failed", "path", cfg.DatabasePath(), "error", err)
		os.Exit(1)
	}

	if err := database.SeedAdmin(context.Background(), store, database.AdminSeed{
		Username:         cfg.AdminUsername,
		Email:            cfg.AdminEmail,
		Password:         cfg.AdminPassword,
		SecurityQuestion: cfg.AdminSecurityQuestion,
		SecurityAnswer:   cfg.AdminSecurityAnswer,
	}); err != nil {
		slog.Error("admin seed failed", "error", err)
		os.Exit(1)
	}

	// Store log handler (ERROR+ async batch)
	storeLogHandler := logging.NewStoreHandler(store, 5*time.Second)
	slog.SetDefault(slog.New(logging.NewFanout(consoleHandler, storeLogHandler)))

	// Services
	recorder := audit.NewRecorder(store)
	assets := storage.NewAssetStore(cfg.UploadsDir(), cfg.UploadMaxBytes)

	authService := services.NewAuthService(store, cfg, recorder)
	userService := services.NewUserService(store, recorder)
	applicantService := services.NewApplicantService(store, assets, recorder, services.ApplicantConfig{
		MinAge:   cfg.MinApplicantAge,
		Throttle: cfg.ApplyThrottle,
	})
	branchService := services.NewBranchService(store, recorder)
	deploymentService := services.NewDeploymentService(store, recorder)
	auditService := services.NewAuditService(store)
	backups := backup.NewManager(store, cfg.UploadsDir(), recorder, cfg.RestoreMaxBytes)

	// Retention sweep for stale rejected applicants
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := retention.NewSweeper(store, assets, retention.Config{
		Window:       cfg.RetentionWindow,
		Interval:     cfg.RetentionInterval,
		LogRetention: cfg.SystemLogRetention,
	})
	sweeper.Start(sweepCtx)

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

	// Fiber app; the body limit must admit a full backup archive
	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.BackupMaxBytes) + 1024*1024,
		ProxyHeader:  cfg.ProxyHeader,
		ErrorHandler: customErrorHandler,
	})

	if cfg.SentryDSN != "" {
		app.Use(sentryfiber.New(sentryfiber.Options{
			Repanic:         true,
			WaitForDelivery: false,
		}))
	}

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Metrics())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, routes.Handlers{
		Auth:        handlers.NewAuthHandler(authService),
		Health:      handlers.NewHealthHandler(store),
		Applicants:  handlers.NewApplicantHandler(applicantService),
		Branches:    handlers.NewBranchHandler(branchService),
		Deployments: handlers.NewDeploymentHandler(deploymentService),
		Users:       handlers.NewUserHandler(userService),
		Audit:       handlers.NewAuditHandler(auditService),
		System:      handlers.NewSystemHandler(backups, cfg.BackupMaxBytes),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "volume", cfg.VolumePath)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	stopSweep()
	sweeper.Stop()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	storeLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := store.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
