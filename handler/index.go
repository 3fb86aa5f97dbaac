package handler

import (
	"commerce_settlement/constants"
	"commerce_settlement/gateway"
	"commerce_settlement/live"
	"commerce_settlement/model"
	"commerce_settlement/service"
	"commerce_settlement/utils"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type Handler struct {
	Payments     *service.PaymentService
	Reconciler   *service.Reconciler
	Hub          *live.Hub
	VNPay        *gateway.VNPay
	StripeSecret string
	AppURL       string
}

// statusFor maps domain errors to an HTTP status and a user-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrPaymentNotFound):
		return fiber.StatusNotFound, constants.PAYMENT_NOT_FOUND
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrStaleWrite):
		return fiber.StatusConflict, constants.PAYMENT_CONFLICT
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidOrder),
		errors.Is(err, model.ErrInvalidMethod),
		errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrInvalidReference),
		errors.Is(err, model.ErrMissingQRCode),
		errors.Is(err, model.ErrAmountMismatch),
		errors.Is(err, model.ErrInvalidSignature):
		return fiber.StatusBadRequest, constants.PAYMENT_INVALID_REQUEST
	}
	return fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR
}

func errorResponse(c *fiber.Ctx, err error) error {
	status, message := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return utils.ErrorResponse(c, status, message, nil)
	}
	return utils.ErrorResponse(c, status, message, err)
}
