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

// WalletHandler wires wallet HTTP routes.
type WalletHandler struct {
	wallets   service.WalletService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewWalletHandler constructs the handler.
func NewWalletHandler(wallets service.WalletService, validate *validator.Validate, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		wallets:   wallets,
		validator: validate,
		logger:    logger.With().Str("component", "wallet_handler").Logger(),
	}
}

// RegisterStudent attaches student endpoints to the router group.
func (h *WalletHandler) RegisterStudent(router fiber.Router) {
	router.Get("/balance", h.balance)
	router.Get("/history", h.history)
	router.Post("/convert", h.convert)
}

// RegisterAdmin attaches administrator endpoints to the router group.
func (h *WalletHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/provision/:userId", h.provision)
	router.Post("/sync/:userId", h.sync)
}

func (h *WalletHandler) balance(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	wallet, err := h.wallets.GetBalance(c.Context(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "wallet balance", dto.NewWalletResponse(wallet))
}

func (h *WalletHandler) history(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	logs, total, err := h.wallets.History(c.Context(), userID, page, pageSize)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "transaction history", dto.NewTransactionHistoryResponse(logs, page, pageSize, total))
}

func (h *WalletHandler) convert(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload dto.ConvertCoinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	newBalance, err := h.wallets.ConvertCoinToPoints(c.Context(), userID, payload.Amount)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "coins converted", dto.ConvertCoinResponse{
		Converted:  payload.Amount,
		NewBalance: newBalance,
	})
}

func (h *WalletHandler) provision(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	wallet, err := h.wallets.ProvisionWallet(c.Context(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "wallet provisioned", dto.NewWalletResponse(wallet))
}

func (h *WalletHandler) sync(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	wallet, err := h.wallets.GetBalance(c.Context(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	balance, err := h.wallets.SyncBalance(c.Context(), wallet.Address, true)
	if err != nil {
		return h.handleError(c, err)
	}
	wallet.Balance = balance

	return utils.SendSuccess(c, "balance synchronized", dto.NewWalletResponse(wallet))
}

func (h *WalletHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound), errors.Is(err, service.ErrNoWallet):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chain.ErrUnavailable), errors.Is(err, chain.ErrReverted):
		requestLogger(h.logger, c).Error().Err(err).Msg("chain rejected or unreachable")
		return utils.SendError(c, fiber.StatusBadGateway, "chain node unavailable")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
