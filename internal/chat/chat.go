// Package chat delivers direct messages between two users over a pub/sub transport.
package chat

import (
	"context"
	"fmt"
	"time"
)

// Message is a single chat message.
type Message struct {
	From   int64     `json:"from"`
	To     int64     `json:"to"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Handler receives messages delivered on a channel.
type Handler func(Message)

// Transport is a pub/sub channel provider.
type Transport interface {
	// Subscribe delivers every message published on channel to onMessage until
	// the returned unsubscribe func is called or ctx ends.
	Subscribe(ctx context.Context, channel string, onMessage Handler) (unsubscribe func(), err error)
	Publish(ctx context.Context, channel string, msg Message) error
}

// ChannelKey names the channel shared by two users. It is symmetric.
func ChannelKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("chat.%d.%d", a, b)
}

// Send publishes body from one user to another on their shared channel.
func Send(ctx context.Context, t Transport, from, to int64, body string) (Message, error) {
	msg := Message{
		From:   from,
		To:     to,
		Body:   body,
		SentAt: time.Now().UTC(),
	}
	if err := t.Publish(ctx, ChannelKey(from, to), msg); err != nil {
		return Message{}, fmt.Errorf("publish chat message: %w", err)
	}
	return msg, nil
}
