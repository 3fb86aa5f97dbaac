package client

import (
	"commerce_settlement/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// OrderClient talks to the order service's internal API.
type OrderClient struct {
	base
}

func NewOrderClient(baseURL, token string, timeout time.Duration) *OrderClient {
	return &OrderClient{base{baseURL: baseURL, token: token, timeout: timeout}}
}

func (c *OrderClient) GetOrder(ctx context.Context, orderId uint) (*model.OrderInfo, error) {
	var order model.OrderInfo
	url := fmt.Sprintf("%s/internal/orders/%d", c.baseURL, orderId)
	if err := c.send(ctx, fiber.Get(url), &order); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d does not exist", model.ErrInvalidOrder, orderId)
		}
		return nil, fmt.Errorf("get order %d: %w", orderId, err)
	}
	return &order, nil
}

func (c *OrderClient) SetPaymentStatus(ctx context.Context, orderId, paymentId uint, status string) error {
	url := fmt.Sprintf("%s/internal/orders/%d/payment-status", c.baseURL, orderId)
	a := fiber.Patch(url).JSON(fiber.Map{"paymentStatus": status, "paymentId": paymentId})
	if err := c.send(ctx, a, nil); err != nil {
		return fmt.Errorf("set payment status of order %d: %w", orderId, err)
	}
	return nil
}

func (c *OrderClient) SetStatus(ctx context.Context, orderId uint, status string) error {
	url := fmt.Sprintf("%s/internal/orders/%d/status", c.baseURL, orderId)
	a := fiber.Patch(url).JSON(fiber.Map{"status": status})
	if err := c.send(ctx, a, nil); err != nil {
		return fmt.Errorf("set status of order %d: %w", orderId, err)
	}
	return nil
}
