package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-coin-api/internal/service"
	"github.com/noah-isme/campus-coin-api/internal/utils"
)

// ReconciliationHandler exposes the on-demand reconciliation sweep.
type ReconciliationHandler struct {
	service service.ReconciliationService
	logger  zerolog.Logger
}

// NewReconciliationHandler constructs the handler.
func NewReconciliationHandler(service service.ReconciliationService, logger zerolog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{
		service: service,
		logger:  logger.With().Str("component", "reconciliation_handler").Logger(),
	}
}

// Register attaches the sweep endpoint to the router group.
func (h *ReconciliationHandler) Register(router fiber.Router) {
	router.Post("/run", h.run)
}

func (h *ReconciliationHandler) run(c *fiber.Ctx) error {
	report, err := h.service.Run(c.Context())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("reconciliation sweep failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "reconciliation sweep failed")
	}

	return utils.SendSuccess(c, "reconciliation complete", report)
}
