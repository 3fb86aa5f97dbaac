package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrNotFound is returned when a collaborator answers 404.
var ErrNotFound = errors.New("resource not found")

type base struct {
	baseURL string
	token   string
	timeout time.Duration
}

// budget clamps the per-call timeout to whatever is left on ctx.
func (b base) budget(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d := b.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return d, nil
}

func (b base) send(ctx context.Context, a *fiber.Agent, out any) error {
	d, err := b.budget(ctx)
	if err != nil {
		fiber.ReleaseAgent(a)
		return err
	}
	a.Timeout(d).Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if b.token != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+b.token)
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code == fiber.StatusNotFound {
		return ErrNotFound
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("unexpected status %d: %s", code, truncate(body, 200))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return decodeEnvelope(body, out)
}

// decodeEnvelope accepts both {"status":"success","data":{...}} and a bare object.
func decodeEnvelope(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
