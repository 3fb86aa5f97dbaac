package router

import (
	"commerce_settlement/constants"
	"commerce_settlement/handler"
	"commerce_settlement/middleware"
	"commerce_settlement/validate"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func SetupRoutes(app *fiber.App, h *handler.Handler) {
	api := app.Group("/api", logger.New())
	v1 := api.Group("/v1")

	staff := middleware.RequireRole(constants.ROLE_ADMIN, constants.ROLE_SERVICE)

	payment := v1.Group("/payments")
	// gateway callback is unauthenticated
	payment.Post("/callback", validate.Callback(), h.PaymentCallback)
	payment.Get("/ws", middleware.Protected(), h.WebsocketUpgrade, websocket.New(h.PaymentWebsocket))

	payment.Get("/", middleware.Protected(), validate.FilterPayment(), h.GetMyPayments)
	payment.Post("/", middleware.Protected(), validate.CreatePayment(), h.CreatePayment)
	payment.Post("/bulk", middleware.Protected(), validate.BulkPayment(), h.CreateBulkPayment)
	payment.Get("/qr", middleware.Protected(), h.GetPaymentByQRCode)
	payment.Get("/order/:orderId", middleware.Protected(), validate.GetById("orderId"), h.GetPaymentStatusByOrder)
	payment.Get("/:paymentId", middleware.Protected(), validate.GetById("paymentId"), h.GetPaymentById)
	payment.Get("/:paymentId/qr", middleware.Protected(), validate.GetById("paymentId"), h.GetPaymentQRImage)
	payment.Patch("/:paymentId/status", middleware.Protected(), staff, validate.GetById("paymentId"), validate.UpdatePaymentStatus(), h.UpdatePaymentStatus)
	payment.Post("/:paymentId/refund", middleware.Protected(), staff, validate.GetById("paymentId"), h.RefundPayment)
	payment.Delete("/:paymentId", middleware.Protected(), middleware.RequireRole(constants.ROLE_ADMIN), validate.GetById("paymentId"), h.DeletePayment)

	vnpay := app.Group("/vnpay", logger.New())
	vnpay.Get("/return", h.VNPayReturn)
	vnpay.Get("/ipn", h.VNPayIPN)
	vnpay.Post("/ipn", h.VNPayIPN)

	app.Post("/stripe/webhook", logger.New(), h.StripeWebhook)
}
