package queue

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/jnst/user-notification-service/internal/config"
)

// Conn is a queue that can be both consumed and published to.
type Conn interface {
	Client
	Publisher
}

// Open connects to the queue selected by cfg.Driver. It returns a nil Conn
// when the queue is not configured. The returned func releases the connection.
func Open(ctx context.Context, cfg config.QueueConfig) (Conn, func(), error) {
	noop := func() {}

	if !cfg.Enabled() {
		return nil, noop, nil
	}

	switch cfg.Driver {
	case config.QueueDriverRedis:
		redisClient, err := rueidis.NewClient(rueidis.ClientOption{
			InitAddress: []string{cfg.RedisAddr},
		})
		if err != nil {
			return nil, noop, fmt.Errorf("redis: connect %s: %w", cfg.RedisAddr, err)
		}

		stream := NewStreamClient(redisClient, cfg.RedisStream, cfg.RedisGroup, cfg.ConsumerName)
		if err := stream.EnsureGroup(ctx); err != nil {
			redisClient.Close()
			return nil, noop, err
		}

		return stream, redisClient.Close, nil
	default:
		client, err := NewSQSClient(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}

		return client, noop, nil
	}
}
