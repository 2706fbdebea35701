package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/events"
)

// RedisRelay shares fan-out events between API instances over a Redis
// pub/sub channel. Local events reach the local hub directly; the relay only
// delivers events that originated on another instance.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisRelay creates a relay bound to hub.
func NewRedisRelay(client *redis.Client, cfg config.RealtimeConfig, hub *Hub, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:  client,
		channel: cfg.RedisChannel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
	}
}

// Attach forwards every locally published event to the relay channel.
func (r *RedisRelay) Attach(dispatcher events.Dispatcher) {
	dispatcher.SubscribeAll(r.Publish)
}

// Publish writes the event to the relay channel.
func (r *RedisRelay) Publish(ctx context.Context, event events.Event) error {
	payload, err := encodeEnvelope(r.origin, event)
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run consumes the relay channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("event relay subscribed", zap.String("channel", r.channel), zap.String("origin", r.origin))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("relay channel closed")
			}
			if err := r.receive(ctx, []byte(msg.Payload)); err != nil {
				r.logger.Warn("dropping relay message", zap.Error(err))
			}
		}
	}
}

func (r *RedisRelay) receive(ctx context.Context, payload []byte) error {
	env, err := decodeEnvelope(payload)
	if err != nil {
		return fmt.Errorf("decode relay envelope: %w", err)
	}
	if env.Origin == r.origin {
		return nil
	}
	return r.hub.Deliver(ctx, env.Event)
}
