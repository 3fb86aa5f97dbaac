package main

import (
	"commerce_settlement/client"
	"commerce_settlement/config"
	"commerce_settlement/database"
	"commerce_settlement/gateway"
	"commerce_settlement/handler"
	"commerce_settlement/helper"
	"commerce_settlement/kafka"
	"commerce_settlement/live"
	"commerce_settlement/model"
	"commerce_settlement/repository"
	"commerce_settlement/router"
	"commerce_settlement/service"
	"commerce_settlement/utils"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	s := config.Load()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.AppURL,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept",
		AllowCredentials: true,
		ExposeHeaders:    "Set-Cookie",
		MaxAge:           600,
	}))

	db, err := database.ConnectDB(s)
	if err != nil {
		log.Fatal(err)
	}

	// without redis the replay guard and live fan-out stay in process
	rdb, err := database.ConnectRedis(s)
	if err != nil {
		log.Warnw("redis unavailable, running single instance", "error", err)
	}

	var events service.EventPublisher
	producer, err := kafka.NewProducer(s.KafkaBrokers, 5)
	if err != nil {
		log.Errorw("kafka unavailable, payment events disabled", "error", err)
	} else {
		events = producer
		defer producer.Close()
	}

	orders := client.NewOrderClient(s.OrderServiceURL, s.ServiceToken, s.OrderUpdateTimeout)
	accounts := client.NewAccountClient(s.AccountServiceURL, s.ServiceToken, s.UserCheckTimeout)

	vnpay := gateway.NewVNPay(model.VNPayConfig{
		TmnCode:    s.VNPayTmnCode,
		HashSecret: s.VNPayHashSecret,
		BaseURL:    s.VNPayURL,
		ReturnURL:  s.APIURL + "/vnpay/return",
		IPNURL:     s.APIURL + "/vnpay/ipn",
	})
	qr := &service.QRBuilder{
		VNPay: vnpay,
		Bank: service.BankAccount{
			Code:   s.BankCode,
			Number: s.BankAccount,
			Name:   s.BankName,
		},
		TTL: s.PaymentTTL,
	}

	var payments *service.PaymentService
	hub := live.NewHub(func(ctx context.Context, orderId uint) (*model.PaymentSnapshot, error) {
		return payments.GetStatusByOrder(ctx, orderId)
	}, 5*time.Second)

	var guard service.ReplayGuard = service.NewMemoryReplayGuard(s.ReplayWindow, s.ReplayLimit)
	if rdb != nil {
		guard = service.NewRedisReplayGuard(rdb, s.ReplayWindow, s.ReplayLimit)
		hub.UseBackplane(live.NewRedisBackplane(rdb, live.DefaultChannel))
		defer rdb.Close()
	}
	stopListen, err := hub.Listen(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer stopListen()

	payments = service.NewPaymentService(
		repository.NewPaymentRepository(db),
		accounts,
		orders,
		events,
		hub,
		qr,
		service.Options{
			UserCheckTimeout:   s.UserCheckTimeout,
			OrderUpdateTimeout: s.OrderUpdateTimeout,
			PublishTimeout:     s.PublishTimeout,
			PaymentTTL:         s.PaymentTTL,
		},
	)
	payments.Mailer = utils.ReceiptMailer{Config: utils.SMTPConfig{
		Host:     s.SMTPHost,
		Port:     s.SMTPPort,
		Username: s.SMTPUsername,
		Password: s.SMTPPassword,
		From:     s.SMTPFrom,
	}}

	reconciler := service.NewReconciler(
		payments,
		repository.NewCallbackLogRepository(db),
		repository.NewOrderSyncRepository(db),
		guard,
		s.OrderSyncAttempts,
	)

	schedulers, err := helper.StartSchedulers(reconciler, "@every 1m", time.Minute)
	if err != nil {
		log.Fatal(err)
	}
	defer schedulers.Stop()

	router.SetupRoutes(app, &handler.Handler{
		Payments:     payments,
		Reconciler:   reconciler,
		Hub:          hub,
		VNPay:        vnpay,
		StripeSecret: s.StripeWebhookSecret,
		AppURL:       s.AppURL,
	})

	go func() {
		if err := app.Listen(":" + s.Port); err != nil {
			log.Errorw("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorw("shutdown failed", "error", err)
	}
}
