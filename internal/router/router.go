package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/config"
	"github.com/noah-isme/campus-coin-api/internal/handler"
	"github.com/noah-isme/campus-coin-api/internal/middleware"
	"github.com/noah-isme/campus-coin-api/internal/models"
	"github.com/noah-isme/campus-coin-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ActivityHandler       *handler.ActivityHandler
	RegistrationHandler   *handler.RegistrationHandler
	WalletHandler         *handler.WalletHandler
	ReconciliationHandler *handler.ReconciliationHandler
	DB                    *gorm.DB
	Gateway               chain.Gateway
	JWTMiddleware         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Gateway))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Student surface. Registrations and wallet operations hit the database
	// in write paths and the chain on conversions, so both are rate limited
	// per user.
	student := app.Group("/api/v1/student", jwtMiddleware, middleware.RequireRole(models.RoleStudent))
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.RegisterPublic(student.Group("/activities"))
	}
	if deps.RegistrationHandler != nil {
		deps.RegistrationHandler.RegisterStudent(student.Group("/registrations",
			middleware.RateLimit("registrations", 30, time.Minute)))
	}
	if deps.WalletHandler != nil {
		deps.WalletHandler.RegisterStudent(student.Group("/wallet",
			middleware.RateLimit("wallet", 30, time.Minute)))
	}

	// Administrator surface
	admin := app.Group("/api/v1/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.RegisterAdmin(admin.Group("/activities"))
	}
	if deps.RegistrationHandler != nil {
		deps.RegistrationHandler.RegisterAdmin(admin.Group("/registrations"))
	}
	if deps.WalletHandler != nil {
		deps.WalletHandler.RegisterAdmin(admin.Group("/wallets"))
	}
	if deps.ReconciliationHandler != nil {
		deps.ReconciliationHandler.Register(admin.Group("/reconciliation"))
	}
}
