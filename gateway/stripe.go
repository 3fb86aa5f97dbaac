package gateway

import (
	"commerce_settlement/constants"
	"commerce_settlement/model"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const stripeReferenceKey = "order_reference"

// ParseStripeEvent verifies a webhook and maps the checkout events this service
// cares about onto a Notification. Other events return (nil, nil).
func ParseStripeEvent(payload []byte, signature, secret string) (*model.Notification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("parse checkout session: %w", err)
		}
		status := "success"
		if event.Type == "checkout.session.async_payment_failed" {
			status = "failure"
		} else if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// async methods settle later
			return nil, nil
		}
		ref := session.ClientReferenceID
		if ref == "" {
			ref = session.Metadata[stripeReferenceKey]
		}
		return &model.Notification{
			Gateway:       constants.GATEWAY_STRIPE,
			TransactionId: session.ID,
			Reference:     ref,
			Amount:        session.AmountTotal,
			Status:        status,
			Raw:           payload,
		}, nil

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("parse payment intent: %w", err)
		}
		return &model.Notification{
			Gateway:       constants.GATEWAY_STRIPE,
			TransactionId: intent.ID,
			Reference:     intent.Metadata[stripeReferenceKey],
			Amount:        intent.Amount,
			Status:        "failure",
			Raw:           payload,
		}, nil
	}
	return nil, nil
}
