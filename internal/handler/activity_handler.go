package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-coin-api/internal/dto"
	"github.com/noah-isme/campus-coin-api/internal/service"
	"github.com/noah-isme/campus-coin-api/internal/utils"
)

// ActivityHandler wires activity administration HTTP routes.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// RegisterAdmin attaches administrator endpoints to the router group.
func (h *ActivityHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.deactivate)
	router.Put("/:id/classes", h.assignClasses)
}

// RegisterPublic attaches the student-facing listing endpoints. Students see
// only activities still open for registration.
func (h *ActivityHandler) RegisterPublic(router fiber.Router) {
	router.Get("", h.listOpen)
	router.Get("/:id", h.get)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	activities, err := h.service.ListActive(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "activities retrieved", dto.NewActivityListResponse(activities))
}

func (h *ActivityHandler) listOpen(c *fiber.Ctx) error {
	activities, err := h.service.ListOpen(c.Context())
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "activities retrieved", dto.NewActivityListResponse(activities))
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	activity, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		}
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "activity retrieved", dto.NewActivityResponse(activity))
}

func (h *ActivityHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateActivityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity created", dto.NewActivityResponse(activity))
}

func (h *ActivityHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UpdateActivityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activity updated", dto.NewActivityResponse(activity))
}

func (h *ActivityHandler) deactivate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Deactivate(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activity deactivated", fiber.Map{"id": id})
}

func (h *ActivityHandler) assignClasses(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignClassesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(payload.AllowedClasses) == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "allowed_classes is required")
	}

	activity, err := h.service.AssignClasses(c.Context(), id, payload.AllowedClasses)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "classes assigned", dto.NewActivityResponse(activity))
}

func (h *ActivityHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrActivityNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "activity not found")
	case errors.Is(err, service.ErrInvalidActivityWindow), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ActivityHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
