package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisTransport delivers chat messages over redis PUBLISH/SUBSCRIBE.
type RedisTransport struct {
	client redis.UniversalClient
	logger *zerolog.Logger
}

// NewRedisTransport creates a transport on client.
func NewRedisTransport(client redis.UniversalClient, logger *zerolog.Logger) *RedisTransport {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisTransport{client: client, logger: logger}
}

// Publish sends msg as JSON on channel.
func (t *RedisTransport) Publish(ctx context.Context, channel string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	return t.client.Publish(ctx, channel, data).Err()
}

// Subscribe starts delivering messages on channel. It returns once redis has
// confirmed the subscription. The subscription is closed by unsubscribe or
// when ctx ends.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string, onMessage Handler) (func(), error) {
	sub := t.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					t.logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed chat message")
					continue
				}
				onMessage(msg)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
