package handler

import (
	"commerce_settlement/constants"
	"commerce_settlement/gateway"
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// rejected reports errors that retrying the same callback can never fix.
func rejected(err error) bool {
	status, _ := statusFor(err)
	return status != fiber.StatusInternalServerError
}

// PaymentCallback handles the generic JSON notification.
func (h *Handler) PaymentCallback(c *fiber.Ctx) error {
	n := c.Locals("input").(model.Notification)
	n.Gateway = constants.GATEWAY_GENERIC
	n.Raw = append([]byte(nil), c.Body()...)

	result, err := h.Reconciler.HandleNotification(c.UserContext(), n)
	if err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": constants.CALLBACK_RECEIVED, "ignored": true})
		}
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": constants.CALLBACK_RECEIVED,
		"data":    result,
	})
}

// vnpayQuery merges the query string with a form body; VNPay sends IPN both ways.
func vnpayQuery(c *fiber.Ctx) url.Values {
	values, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	if c.Method() == fiber.MethodPost {
		if form, err := url.ParseQuery(string(c.Body())); err == nil {
			for k, v := range form {
				values[k] = v
			}
		}
	}
	return values
}

// VNPayReturn applies the browser redirect from VNPay and sends the payer to
// a landing page named by the order ids.
func (h *Handler) VNPayReturn(c *fiber.Ctx) error {
	query := vnpayQuery(c)
	res := h.VNPay.Verify(query)
	if !res.Valid {
		log.Warnw("vnpay return rejected", "reason", res.Message, "txnRef", res.TxnRef)
		return c.Redirect(h.AppURL + "/payment/error")
	}

	ids, err := utils.DecodeOrderReference(res.OrderInfo)
	if err != nil {
		log.Warnw("vnpay return with unknown reference", "orderInfo", res.OrderInfo)
		return c.Redirect(h.AppURL + "/payment/error")
	}

	outcome := "failed"
	result, err := h.Reconciler.HandleNotification(c.UserContext(), h.VNPay.Notification(res, []byte(query.Encode())))
	switch {
	case err == nil && result.Status == model.PaymentPaid:
		outcome = "success"
	case err != nil:
		log.Warnw("vnpay return not applied", "txnRef", res.TxnRef, "error", err)
	}
	return c.Redirect(fmt.Sprintf("%s/payment/%s/%s", h.AppURL, outcome, utils.JoinOrderIds(ids)))
}

func ipnResponse(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"RspCode": code, "Message": message})
}

// VNPayIPN is the server-to-server notification; VNPay reads only RspCode.
func (h *Handler) VNPayIPN(c *fiber.Ctx) error {
	query := vnpayQuery(c)
	res := h.VNPay.Verify(query)
	if !res.Valid {
		return ipnResponse(c, "97", "Invalid signature")
	}

	result, err := h.Reconciler.HandleNotification(c.UserContext(), h.VNPay.Notification(res, []byte(query.Encode())))
	switch {
	case err == nil && result.Replayed:
		return ipnResponse(c, "02", "Order already confirmed")
	case err == nil:
		return ipnResponse(c, "00", "Confirm Success")
	case errors.Is(err, model.ErrInvalidReference), errors.Is(err, model.ErrPaymentNotFound):
		return ipnResponse(c, "01", "Order not found")
	case errors.Is(err, model.ErrAmountMismatch):
		return ipnResponse(c, "04", "Invalid amount")
	case errors.Is(err, model.ErrInvalidTransition):
		return ipnResponse(c, "02", "Order already confirmed")
	}
	log.Errorw("vnpay ipn failed", "txnRef", res.TxnRef, "error", err)
	return ipnResponse(c, "99", "Unknown error")
}

func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	n, err := gateway.ParseStripeEvent(payload, c.Get("Stripe-Signature"), h.StripeSecret)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.PAYMENT_INVALID_REQUEST, err)
	}
	if n == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}

	if _, err := h.Reconciler.HandleNotification(c.UserContext(), *n); err != nil {
		if !rejected(err) {
			return errorResponse(c, err)
		}
		log.Warnw("stripe event rejected", "transaction", n.TransactionId, "error", err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
