package routes

import (
	"time"

	"github.com/alohasecurity/aloha-backend/internal/config"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/alohasecurity/aloha-backend/internal/handlers"
	"github.com/alohasecurity/aloha-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	Health      *handlers.HealthHandler
	Applicants  *handlers.ApplicantHandler
	Branches    *handlers.BranchHandler
	Deployments *handlers.DeploymentHandler
	Users       *handlers.UserHandler
	Audit       *handlers.AuditHandler
	System      *handlers.SystemHandler
}

func ipLimiter(max int, window time.Duration, msg string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: true, Message: msg,
			})
		},
	})
}

func Setup(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Static("/uploads", cfg.UploadsDir())

	api := app.Group("/api")

	// Public
	api.Get("/health", h.Health.Check)
	api.Post("/apply",
		ipLimiter(5, time.Hour, "Too many applications from this IP, please try again after an hour."),
		h.Applicants.Apply)
	api.Get("/status", h.Applicants.Status)

	auth := api.Group("/auth")
	auth.Post("/login",
		ipLimiter(10, 15*time.Minute, "Too many login attempts, please try again later."),
		h.Auth.Login)
	auth.Post("/forgot-password-init", h.Auth.ForgotPasswordInit)
	auth.Post("/reset-password", h.Auth.ResetPassword)

	// Protected (JWT required)
	jwt := middleware.JWTProtected(cfg)
	api.Put("/auth/update-profile", jwt, h.Auth.UpdateProfile)

	api.Get("/dashboard-stats", jwt, h.Applicants.DashboardStats)
	api.Get("/applicants", jwt, h.Applicants.List)
	api.Put("/applicants/:id/status", jwt, h.Applicants.UpdateStatus)
	api.Delete("/applicants/:id", jwt, h.Applicants.Delete)

	api.Post("/branches", jwt, h.Branches.Create)
	api.Get("/branches", jwt, h.Branches.List)
	api.Put("/branches/:id", jwt, h.Branches.Update)
	api.Delete("/branches/:id", jwt, h.Branches.Delete)

	api.Post("/deployments", jwt, h.Deployments.Create)
	api.Get("/deployments", jwt, h.Deployments.List)
	api.Put("/deployments/:id", jwt, h.Deployments.UpdateStatus)
	api.Delete("/deployments/:id", jwt, h.Deployments.Delete)

	// Admin only
	admin := middleware.AdminRequired()
	api.Get("/users", jwt, admin, h.Users.List)
	api.Post("/users", jwt, admin, h.Users.Create)
	api.Put("/users/:id", jwt, admin, h.Users.Update)
	api.Delete("/users/:id", jwt, admin, h.Users.Delete)

	api.Get("/audit/logs", jwt, admin, h.Audit.List)

	api.Get("/system/backup", jwt, admin, h.System.Backup)
	api.Post("/system/restore", jwt, admin, h.System.Restore)
}
