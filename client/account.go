package client

import (
	"commerce_settlement/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

type AccountClient struct {
	base
}

func NewAccountClient(baseURL, token string, timeout time.Duration) *AccountClient {
	return &AccountClient{base{baseURL: baseURL, token: token, timeout: timeout}}
}

func (c *AccountClient) GetUser(ctx context.Context, userId uint) (*model.AccountInfo, error) {
	var account model.AccountInfo
	url := fmt.Sprintf("%s/internal/users/%d", c.baseURL, userId)
	if err := c.send(ctx, fiber.Get(url), &account); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", model.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("get user %d: %w", userId, err)
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: %d is inactive", model.ErrUserNotFound, userId)
	}
	return &account, nil
}
