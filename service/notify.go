package service

import (
	"commerce_settlement/model"
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// publish announces a committed change. Delivery is attempted once, bounded
// by PublishTimeout; failure or timeout is logged and otherwise ignored.
func (s *PaymentService) publish(topic string, p model.Payment, orderIds []uint) {
	if s.Events == nil {
		return
	}
	evt := model.PaymentEvent{
		EventType: topic,
		Data: model.PaymentEventData{
			PaymentId: p.ID,
			OrderId:   p.OrderId,
			OrderIds:  orderIds,
			UserId:    p.UserId,
			Amount:    p.Amount,
			Fee:       p.Fee,
			Status:    string(p.Status),
			Timestamp: s.now(),
		},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Options.PublishTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- s.Events.Publish(ctx, topic, evt) }()

		select {
		case err := <-done:
			if err != nil {
				log.Errorw("publish payment event failed", "topic", topic, "payment", p.ID, "error", err)
			}
		case <-ctx.Done():
			log.Warnw("publish payment event timed out", "topic", topic, "payment", p.ID, "timeout", s.Options.PublishTimeout)
		}
	}()
}

func (s *PaymentService) broadcast(ctx context.Context, p *model.Payment, orderIds []uint) {
	if s.Notifier == nil || len(orderIds) == 0 {
		return
	}
	s.Notifier.Broadcast(ctx, model.StatusEvent{
		Type:      "payment_status",
		OrderIds:  orderIds,
		PaymentId: p.ID,
		Status:    p.Status,
		Amount:    p.Amount,
		IsSuccess: p.Status == model.PaymentPaid,
		Timestamp: s.now(),
	})
}

func (s *PaymentService) sendReceipt(p model.Payment) {
	if s.Mailer == nil || s.Users == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Options.UserCheckTimeout)
		defer cancel()

		account, err := s.Users.GetUser(ctx, p.UserId)
		if err != nil || account.Email == "" {
			log.Debugw("receipt skipped, no recipient", "payment", p.ID, "user", p.UserId, "error", err)
			return
		}
		start := time.Now()
		if err := s.Mailer.SendReceipt(account.Email, p); err != nil {
			log.Warnw("send receipt failed", "payment", p.ID, "error", err)
			return
		}
		log.Debugw("receipt mailed", "payment", p.ID, "took", time.Since(start))
	}()
}
