package handler

import (
	"commerce_settlement/constants"
	"commerce_settlement/helper"
	"commerce_settlement/model"
	"commerce_settlement/service"
	"commerce_settlement/utils"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func privileged(claim model.TokenClaim) bool {
	return claim.Role == constants.ROLE_ADMIN || claim.Role == constants.ROLE_SERVICE
}

// payer lets admins and services pay on behalf of a user; customers always pay for themselves.
func payer(claim model.TokenClaim, requested uint) uint {
	if requested != 0 && privileged(claim) {
		return requested
	}
	return claim.UserId
}

func (h *Handler) CreatePayment(c *fiber.Ctx) error {
	input := c.Locals("input").(model.CreatePaymentInput)
	claim, _ := helper.GetUserFromToken(c)

	payment, err := h.Payments.Create(c.UserContext(), model.CreatePaymentCommand{
		OrderIds:  input.Ids(),
		Amount:    input.Amount,
		Method:    input.Method,
		UserId:    payer(claim, input.UserId),
		CreatedBy: claim.UserId,
		ClientIP:  c.IP(),
	})
	if err != nil {
		return errorResponse(c, err)
	}

	data := fiber.Map{
		"paymentId":      payment.ID,
		"paymentCode":    payment.PaymentCode,
		"qrCode":         payment.QRCode,
		"status":         payment.Status,
		"amount":         payment.Amount,
		"orderReference": payment.OrderReference,
		"description":    payment.Description,
	}
	if img, err := utils.QRDataURL(payment.QRCode, 256); err == nil {
		data["qrImage"] = img
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, data)
}

func (h *Handler) CreateBulkPayment(c *fiber.Ctx) error {
	input := c.Locals("input").(model.BulkPaymentInput)
	claim, _ := helper.GetUserFromToken(c)

	result, err := h.Payments.CreateBulk(c.UserContext(), model.CreatePaymentCommand{
		OrderIds:  input.OrderIds,
		Method:    input.Method,
		UserId:    claim.UserId,
		CreatedBy: claim.UserId,
		ClientIP:  c.IP(),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, result)
}

// visiblePayment hides other users' payments from customers.
func (h *Handler) visiblePayment(c *fiber.Ctx, p *model.Payment) bool {
	claim, _ := helper.GetUserFromToken(c)
	return privileged(claim) || p.UserId == claim.UserId
}

func (h *Handler) GetPaymentById(c *fiber.Ctx) error {
	id := c.Locals("inputId").(uint)

	payment, err := h.Payments.GetByID(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if !h.visiblePayment(c, payment) {
		return errorResponse(c, model.ErrPaymentNotFound)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, payment)
}

func (h *Handler) GetPaymentStatusByOrder(c *fiber.Ctx) error {
	orderId := c.Locals("inputId").(uint)

	snapshot, err := h.Payments.GetStatusByOrder(c.UserContext(), orderId)
	if err != nil {
		return errorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, snapshot)
}

func (h *Handler) GetPaymentByQRCode(c *fiber.Ctx) error {
	payment, err := h.Payments.GetByQRCode(c.UserContext(), c.Query("code"))
	if err != nil {
		return errorResponse(c, err)
	}
	if !h.visiblePayment(c, payment) {
		return errorResponse(c, model.ErrPaymentNotFound)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, service.Snapshot(payment))
}

func (h *Handler) GetPaymentQRImage(c *fiber.Ctx) error {
	id := c.Locals("inputId").(uint)

	payment, err := h.Payments.GetByID(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	if !h.visiblePayment(c, payment) {
		return errorResponse(c, model.ErrPaymentNotFound)
	}

	size, _ := strconv.Atoi(c.Query("size", "256"))
	if size < 64 || size > 1024 {
		size = 256
	}
	png, err := utils.GenerateQRCode(payment.QRCode, size)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Type("png")
	return c.Send(png)
}

func (h *Handler) GetMyPayments(c *fiber.Ctx) error {
	filter := c.Locals("input").(model.FilterPaymentInput)
	claim, _ := helper.GetUserFromToken(c)

	result, err := h.Payments.ListByUser(c.UserContext(), claim.UserId, filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, result)
}

func (h *Handler) UpdatePaymentStatus(c *fiber.Ctx) error {
	id := c.Locals("inputId").(uint)
	input := c.Locals("input").(model.UpdatePaymentStatusInput)
	claim, _ := helper.GetUserFromToken(c)

	payment, err := h.Payments.Transition(c.UserContext(), model.TransitionCommand{
		PaymentId: id,
		Target:    input.Status,
		QRCode:    input.QRCode,
		Fee:       input.Fee,
		ActorId:   claim.UserId,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": constants.PAYMENT_STATUS_UPDATED,
		"data":    service.Snapshot(payment),
	})
}

func (h *Handler) RefundPayment(c *fiber.Ctx) error {
	id := c.Locals("inputId").(uint)
	claim, _ := helper.GetUserFromToken(c)

	payment, err := h.Payments.Refund(c.UserContext(), id, claim.UserId)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": constants.PAYMENT_REFUNDED,
		"data":    service.Snapshot(payment),
	})
}

func (h *Handler) DeletePayment(c *fiber.Ctx) error {
	id := c.Locals("inputId").(uint)
	claim, ok := helper.GetUserFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.ERROR_UNAUTHORIZED, errors.New("no user"))
	}

	if err := h.Payments.Delete(c.UserContext(), id, claim.UserId); err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": constants.PAYMENT_DELETED})
}
