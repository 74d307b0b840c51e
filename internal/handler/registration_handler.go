package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-coin-api/internal/chain"
	"github.com/noah-isme/campus-coin-api/internal/dto"
	"github.com/noah-isme/campus-coin-api/internal/service"
	"github.com/noah-isme/campus-coin-api/internal/utils"
)

// RegistrationHandler wires the participation lifecycle HTTP routes.
type RegistrationHandler struct {
	registrations service.RegistrationService
	evidence      service.EvidenceService
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewRegistrationHandler constructs the handler. evidence may be nil when no
// file storage is configured; evidence uploads then return an error.
func NewRegistrationHandler(registrations service.RegistrationService, evidence service.EvidenceService, validate *validator.Validate, logger zerolog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		evidence:      evidence,
		validator:     validate,
		logger:        logger.With().Str("component", "registration_handler").Logger(),
	}
}

// RegisterStudent attaches student endpoints to the router group.
func (h *RegistrationHandler) RegisterStudent(router fiber.Router) {
	router.Post("/register", h.register)
	router.Get("/mine", h.listMine)
}

// RegisterAdmin attaches administrator endpoints to the router group.
func (h *RegistrationHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/activity/:id", h.listByActivity)
	router.Post("/approve", h.approve)
	router.Post("/confirm", h.confirm)
	router.Post("/resettle", h.resettle)
}

func (h *RegistrationHandler) register(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.RegisterActivityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	registration, err := h.registrations.Register(c.Context(), studentID, payload.ActivityID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registered for activity", dto.NewRegistrationResponse(registration))
}

func (h *RegistrationHandler) listMine(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	registrations, err := h.registrations.ListByStudent(c.Context(), studentID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "registrations retrieved", dto.NewRegistrationListResponse(registrations))
}

func (h *RegistrationHandler) listByActivity(c *fiber.Ctx) error {
	activityID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	registrations, err := h.registrations.ListByActivity(c.Context(), activityID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "registrations retrieved", dto.NewRegistrationListResponse(registrations))
}

func (h *RegistrationHandler) approve(c *fiber.Ctx) error {
	var payload dto.ApproveRegistrationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	registration, err := h.registrations.Approve(c.Context(), payload.ActivityID, payload.StudentCode)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "registration approved", dto.NewRegistrationResponse(registration))
}

// confirm accepts either a JSON body or a multipart form carrying an
// evidence image. Confirmation triggers settlement synchronously; the
// settlement outcome rides back in the response payload.
func (h *RegistrationHandler) confirm(c *fiber.Ctx) error {
	payload, evidenceURL, err := h.parseConfirm(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.registrations.ConfirmParticipation(c.Context(), payload.ActivityID, payload.StudentCode, evidenceURL)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "participation confirmed", result)
}

func (h *RegistrationHandler) resettle(c *fiber.Ctx) error {
	var payload dto.ApproveRegistrationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.registrations.Resettle(c.Context(), payload.ActivityID, payload.StudentCode)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "settlement retried", result)
}

func (h *RegistrationHandler) parseConfirm(c *fiber.Ctx) (dto.ConfirmParticipationRequest, string, error) {
	var payload dto.ConfirmParticipationRequest

	if form, err := c.MultipartForm(); err == nil && form != nil {
		activityID, err := parseFormUint(c, "activity_id")
		if err != nil {
			return payload, "", err
		}
		payload.ActivityID = activityID
		payload.StudentCode = c.FormValue("student_code")

		file, err := c.FormFile("evidence")
		if err != nil || file == nil {
			return payload, "", nil
		}
		if h.evidence == nil {
			return payload, "", errors.New("evidence uploads are not configured")
		}
		url, err := h.evidence.Upload(c.Context(), file)
		if err != nil {
			return payload, "", err
		}
		return payload, url, nil
	}

	if err := c.BodyParser(&payload); err != nil {
		return payload, "", errors.New("invalid request body")
	}
	return payload, payload.EvidenceURL, nil
}

func (h *RegistrationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrActivityNotFound),
		errors.Is(err, service.ErrRegistrationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrAlreadyApproved),
		errors.Is(err, service.ErrAlreadyConfirmed),
		errors.Is(err, service.ErrAlreadySettled):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSlotFull),
		errors.Is(err, service.ErrClassNotAllowed),
		errors.Is(err, service.ErrActivityInactive),
		errors.Is(err, service.ErrActivityClosed),
		errors.Is(err, service.ErrNotApproved),
		errors.Is(err, service.ErrNotAStudent):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrSettlementDiverged):
		requestLogger(h.logger, c).Error().Err(err).Msg("settlement diverged")
		return utils.SendError(c, fiber.StatusBadGateway, "reward minted on chain but local credit failed; reconciliation required")
	case errors.Is(err, chain.ErrUnavailable), errors.Is(err, chain.ErrReverted):
		requestLogger(h.logger, c).Error().Err(err).Msg("chain settlement failed")
		return utils.SendError(c, fiber.StatusBadGateway, "could not issue reward; participation stays confirmed and settlement can be retried")
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *RegistrationHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func parseFormUint(c *fiber.Ctx, key string) (uint, error) {
	id, err := parseUintValue(c.FormValue(key))
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return id, nil
}
