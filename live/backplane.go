package live

import (
	"commerce_settlement/model"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "payment:status"

// Backplane carries status events between instances.
type Backplane interface {
	Publish(ctx context.Context, evt model.StatusEvent) error
	Subscribe(ctx context.Context, deliver func(model.StatusEvent)) (func() error, error)
}

type RedisBackplane struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBackplane(rdb *redis.Client, channel string) *RedisBackplane {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBackplane{rdb: rdb, channel: channel}
}

func (b *RedisBackplane) Publish(ctx context.Context, evt model.StatusEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Subscribe returns once the subscription is confirmed; deliver then runs
// for every event until ctx ends or the returned stop func is called.
func (b *RedisBackplane) Subscribe(ctx context.Context, deliver func(model.StatusEvent)) (func() error, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt model.StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Warnw("drop malformed status event", "channel", msg.Channel, "error", err)
					continue
				}
				deliver(evt)
			}
		}
	}()
	return sub.Close, nil
}

// Listen attaches the hub to its backplane so events published by any
// instance reach local connections.
func (h *Hub) Listen(ctx context.Context) (func() error, error) {
	if h.backplane == nil {
		return func() error { return nil }, nil
	}
	stop, err := h.backplane.Subscribe(ctx, h.Deliver)
	if err != nil {
		return nil, err
	}
	log.Infow("live backplane subscribed")
	return stop, nil
}
