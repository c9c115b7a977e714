package handlers

import (
	"errors"

	"quicksurf/internal/middleware"
	"quicksurf/internal/repositories"
	"quicksurf/internal/services/payment"
	"quicksurf/internal/utils"
	"quicksurf/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(payments *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type fundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Email  string          `json:"email" validate:"required,email"`
}

// InitiateFunding starts a card payment for a wallet top-up and returns the
// gateway authorization URL.
func (h *PaymentHandler) InitiateFunding(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if err := validation.Struct(&req); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	intent, err := h.payments.InitiateFunding(c.Context(), userID, req.Email, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrEmailRequired):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, payment.ErrGatewayFailure):
			return utils.Respond(c, fiber.StatusBadGateway, fiber.Map{"error": "payment gateway unavailable"})
		default:
			return utils.InternalError(c, "failed to initiate funding")
		}
	}

	return utils.Created(c, fiber.Map{
		"reference":         intent.Reference,
		"authorization_url": intent.AuthorizationURL,
		"amount":            intent.Amount,
		"status":            intent.Status,
	})
}

// VerifyFunding polls the gateway for the state of a funding attempt.
func (h *PaymentHandler) VerifyFunding(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return utils.Unauthorized(c, "missing user identity")
	}

	intent, err := h.payments.VerifyFunding(c.Context(), userID, c.Params("reference"))
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrIntentNotFound):
			return utils.NotFound(c, "payment not found")
		case errors.Is(err, payment.ErrGatewayFailure):
			return utils.Respond(c, fiber.StatusBadGateway, fiber.Map{"error": "payment gateway unavailable"})
		default:
			return utils.InternalError(c, "failed to verify funding")
		}
	}

	return utils.Success(c, fiber.Map{
		"reference": intent.Reference,
		"status":    intent.Status,
		"amount":    intent.Amount,
		"paid_at":   intent.PaidAt,
	})
}

// Webhook receives gateway events. Signature failures return 401; anything
// else acknowledges with 200 so the gateway stops retrying.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	signature := c.Get("x-paystack-signature")
	if err := h.payments.ProcessWebhook(c.Context(), c.Body(), signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return utils.Unauthorized(c, "invalid signature")
		}
		return utils.InternalError(c, "webhook processing failed")
	}
	return utils.Success(c, fiber.Map{"status": "ok"})
}
