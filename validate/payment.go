package validate

import (
	"commerce_settlement/model"

	"github.com/gofiber/fiber/v2"
)

func CreatePayment() fiber.Handler {
	return body[model.CreatePaymentInput]()
}

func BulkPayment() fiber.Handler {
	return body[model.BulkPaymentInput]()
}

func UpdatePaymentStatus() fiber.Handler {
	return body[model.UpdatePaymentStatusInput]()
}

func FilterPayment() fiber.Handler {
	return query[model.FilterPaymentInput]()
}

// Callback validates the generic gateway JSON notification.
func Callback() fiber.Handler {
	return body[model.Notification]()
}
