package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Session        *handlers.SessionHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Session.Welcome)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	api.Post("/register", cfg.Accounts.Register)
	api.Post("/verify-otp", cfg.Accounts.VerifyOTP)
	api.Post("/resend-otp", cfg.Accounts.ResendOTP)
	api.Post("/login", cfg.Accounts.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/landing", cfg.Session.Landing)
	protected.Get("/profile", cfg.Session.Profile)
}
