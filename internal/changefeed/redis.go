package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier announces a write performed by this service. Only needed when the store
// itself cannot emit notifications (the Redis feed mode).
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NopNotifier is used when the store triggers emit notifications on their own.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// RedisPublisher publishes change events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// RedisSource subscribes to the Redis channel written by RedisPublisher instances.
type RedisSource struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

func NewRedisSource(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSource{client: client, channel: channel, logger: logger}
}

func (s *RedisSource) Run(ctx context.Context, publish func(Event)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info("change feed subscribed", zap.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("change feed subscription closed")
			}
			ev, err := ParseEvent([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("dropping malformed change event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			publish(ev)
		}
	}
}
