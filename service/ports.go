package service

import (
	"commerce_settlement/model"
	"context"
	"time"
)

type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id uint) (*model.Payment, error)
	GetByQRCode(ctx context.Context, qr string) (*model.Payment, error)
	ListByOrder(ctx context.Context, orderId uint) ([]model.Payment, error)
	ListByAnyOrder(ctx context.Context, orderId uint) ([]model.Payment, error)
	ListByUser(ctx context.Context, userId uint, filter model.FilterPaymentInput) ([]model.Payment, int64, error)
	UpdateTransition(ctx context.Context, p *model.Payment, from model.PaymentStatus) error
	SoftDelete(ctx context.Context, id uint, actorId uint) error
	ListStalePending(ctx context.Context, methods []model.PaymentMethod, before time.Time, limit int) ([]model.Payment, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, userId uint) (*model.AccountInfo, error)
}

type OrderCollaborator interface {
	GetOrder(ctx context.Context, orderId uint) (*model.OrderInfo, error)
	SetPaymentStatus(ctx context.Context, orderId, paymentId uint, status string) error
	SetStatus(ctx context.Context, orderId uint, status string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event model.PaymentEvent) error
}

// StatusNotifier fans a terminal status out to live clients.
type StatusNotifier interface {
	Broadcast(ctx context.Context, evt model.StatusEvent)
}

type CallbackLogStore interface {
	Create(ctx context.Context, entry *model.CallbackLog) error
	MarkResult(ctx context.Context, id uint, status model.CallbackLogStatus, paymentId *uint, errText string) error
}

type OrderSyncQueue interface {
	Enqueue(ctx context.Context, task *model.OrderSyncTask) error
	Due(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.OrderSyncTask, error)
	MarkDone(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, attempts int, errText string, next time.Time) error
}

// InstructionBuilder renders the payer-facing qrCode of a new payment.
type InstructionBuilder interface {
	Build(p *model.Payment, clientIP string) (string, error)
}

type ReceiptMailer interface {
	SendReceipt(to string, p model.Payment) error
}
