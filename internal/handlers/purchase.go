package handlers

import (
	"context"
	"errors"
	"time"

	"quicksurf/internal/middleware"
	"quicksurf/internal/models"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/ledger"
	"quicksurf/internal/services/purchase"
	"quicksurf/internal/utils"
	"quicksurf/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseHandler struct {
	purchases *purchase.Service
}

func NewPurchaseHandler(purchases *purchase.Service) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

type buyRequest struct {
	Network         string          `json:"network" validate:"required"`
	Phone           string          `json:"phone" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Plan            string          `json:"plan"`
	ClientReference string          `json:"client_reference" validate:"max=100"`
}

type buyOp func(ctx context.Context, in purchase.Input) (*models.PurchaseRequest, error)

func (h *PurchaseHandler) BuyAirtime(c *fiber.Ctx) error {
	return h.buy(c, h.purchases.BuyAirtime)
}

func (h *PurchaseHandler) BuyData(c *fiber.Ctx) error {
	return h.buy(c, h.purchases.BuyData)
}

func (h *PurchaseHandler) buy(c *fiber.Ctx, op buyOp) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(&req); err != nil {
		return utils.BadRequest(c, err.Error())
	}
	if req.ClientReference == "" {
		req.ClientReference = uuid.NewString()
	}

	result, err := op(c.Context(), purchase.Input{
		UserID:          userID,
		Network:         req.Network,
		Phone:           req.Phone,
		Plan:            req.Plan,
		Amount:          req.Amount,
		ClientReference: req.ClientReference,
	})
	if err != nil {
		return purchaseError(c, err)
	}

	// A pending purchase is a success with asynchronous settlement, never
	// an error.
	return utils.Success(c, fiber.Map{"purchase": result})
}

func purchaseError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, purchase.ErrInvalidAmount),
		errors.Is(err, purchase.ErrAmountOutOfRange),
		errors.Is(err, purchase.ErrUnknownNetwork),
		errors.Is(err, purchase.ErrInvalidPhone),
		errors.Is(err, purchase.ErrPlanRequired),
		errors.Is(err, purchase.ErrMissingReference):
		return utils.BadRequest(c, err.Error())
	case errors.Is(err, ledger.ErrInsufficientAvailable), errors.Is(err, ledger.ErrInsufficientFunds):
		return utils.UnprocessableEntity(c, "insufficient funds")
	case errors.Is(err, purchase.ErrInFlight), errors.Is(err, purchase.ErrLineBusy):
		return utils.Conflict(c, err.Error())
	case errors.Is(err, repositories.ErrPurchaseNotFound):
		return utils.NotFound(c, "purchase not found")
	default:
		return utils.InternalError(c, "purchase failed")
	}
}

func (h *PurchaseHandler) GetStatus(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	result, err := h.purchases.Status(c.Context(), userID, c.Params("reference"))
	if err != nil {
		return purchaseError(c, err)
	}
	return utils.Success(c, fiber.Map{"purchase": result})
}

// Requery forces a provider reconciliation of an open purchase.
func (h *PurchaseHandler) Requery(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	result, err := h.purchases.Requery(c.Context(), userID, c.Params("reference"))
	if err != nil {
		return purchaseError(c, err)
	}
	return utils.Success(c, fiber.Map{"purchase": result})
}

func (h *PurchaseHandler) GetHistory(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	filter := repositories.PurchaseFilter{
		Status:  c.Query("status"),
		Network: c.Query("network"),
		Search:  c.Query("search"),
		Limit:   c.QueryInt("limit", 25),
		Offset:  c.QueryInt("offset", 0),
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &t
		}
	}

	purchases, err := h.purchases.History(c.Context(), userID, filter)
	if err != nil {
		return utils.InternalError(c, "failed to list purchases")
	}

	return utils.Success(c, fiber.Map{
		"purchases": purchases,
		"count":     len(purchases),
	})
}

// GetPlans lists the purchasable data plans for a network.
func (h *PurchaseHandler) GetPlans(c *fiber.Ctx) error {
	plans, err := h.purchases.ListPlans(c.Context(), c.Params("network"))
	if err != nil {
		if errors.Is(err, purchase.ErrUnknownNetwork) {
			return utils.BadRequest(c, "unknown network")
		}
		return utils.InternalError(c, "failed to list plans")
	}
	return utils.Success(c, fiber.Map{"plans": plans})
}
