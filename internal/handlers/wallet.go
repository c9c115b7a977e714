package handlers

import (
	"context"
	"errors"

	"quicksurf/internal/middleware"
	"quicksurf/internal/models"
	"quicksurf/internal/services/ledger"
	"quicksurf/internal/utils"
	"quicksurf/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	ledger *ledger.Service
}

func NewWalletHandler(ledgerSvc *ledger.Service) *WalletHandler {
	return &WalletHandler{ledger: ledgerSvc}
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	wallet, err := h.ledger.GetWallet(c.Context(), userID)
	if err != nil {
		return utils.InternalError(c, "failed to get wallet")
	}

	return utils.Success(c, fiber.Map{
		"wallet":    wallet,
		"available": wallet.Available(),
	})
}

func (h *WalletHandler) GetHistory(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	limit := c.QueryInt("limit", 25)
	offset := c.QueryInt("offset", 0)

	entries, err := h.ledger.ListEntries(c.Context(), userID, limit, offset)
	if err != nil {
		return utils.InternalError(c, "failed to list ledger entries")
	}

	return utils.Success(c, fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

type walletMutationRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reference string          `json:"reference" validate:"required,max=100"`
}

type ledgerOp func(ctx context.Context, userID uint, amount decimal.Decimal, reference string) (*models.LedgerEntry, error)

// Credit is an operational credit path (manual adjustments, refund ops).
// Normal funding goes through the payment flow.
func (h *WalletHandler) Credit(c *fiber.Ctx) error {
	return h.mutate(c, h.ledger.Credit)
}

func (h *WalletHandler) LockFunds(c *fiber.Ctx) error {
	return h.mutate(c, h.ledger.LockFunds)
}

func (h *WalletHandler) UnlockFunds(c *fiber.Ctx) error {
	return h.mutate(c, h.ledger.UnlockFunds)
}

func (h *WalletHandler) mutate(c *fiber.Ctx, op ledgerOp) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	var req walletMutationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(&req); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	entry, err := op(c.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			return utils.BadRequest(c, "amount must be positive")
		case errors.Is(err, ledger.ErrInsufficientAvailable):
			return utils.UnprocessableEntity(c, "insufficient available funds")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return utils.UnprocessableEntity(c, "insufficient funds")
		case errors.Is(err, ledger.ErrUnlockExceedsLocked):
			return utils.UnprocessableEntity(c, "unlock exceeds locked funds")
		default:
			return utils.InternalError(c, "wallet operation failed")
		}
	}

	return utils.Success(c, fiber.Map{"entry": entry})
}
