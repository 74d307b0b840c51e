package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/config"
	"github.com/noah-isme/campus-coin-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
	Chain       string    `json:"chain"`
}

// HealthCheck returns a handler that reports application health, including
// database and chain gateway reachability.
func HealthCheck(cfg config.Config, db *gorm.DB, gateway chain.Gateway) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Database:    "ok",
			Chain:       "ok",
		}

		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		if db != nil {
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				payload.Database = "unreachable"
				payload.Status = "degraded"
			}
		}

		if gateway != nil {
			if _, err := gateway.TokenName(ctx); err != nil {
				payload.Chain = "unreachable"
				payload.Status = "degraded"
			}
		}

		status := fiber.StatusOK
		if payload.Status != "ok" {
			status = fiber.StatusServiceUnavailable
		}
		return utils.SendSuccessWithStatus(c, status, "service health", payload)
	}
}
