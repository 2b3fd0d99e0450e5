package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelKey(t *testing.T) {
	assert.Equal(t, "chat.3.9", ChannelKey(3, 9))
	assert.Equal(t, "chat.3.9", ChannelKey(9, 3))
	assert.Equal(t, "chat.5.5", ChannelKey(5, 5))
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var got []Message
	unsub, err := bus.Subscribe(ctx, ChannelKey(1, 2), func(m Message) {
		got = append(got, m)
	})
	require.NoError(t, err)

	msg, err := Send(ctx, bus, 2, 1, "hello")
	require.NoError(t, err)
	assert.False(t, msg.SentAt.IsZero())

	_, err = Send(ctx, bus, 1, 3, "elsewhere")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Body)
	assert.Equal(t, int64(2), got[0].From)

	unsub()
	unsub()
	assert.Zero(t, bus.Subscribers(ChannelKey(1, 2)))

	_, err = Send(ctx, bus, 1, 2, "after")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBus_ContextEndsSubscription(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := bus.Subscribe(ctx, "chat.1.2", func(Message) {})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers("chat.1.2"))

	cancel()
	assert.Eventually(t, func() bool {
		return bus.Subscribers("chat.1.2") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRedisTransport(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	transport := NewRedisTransport(rdb, nil)
	ctx := context.Background()

	received := make(chan Message, 4)
	unsub, err := transport.Subscribe(ctx, ChannelKey(10, 4), func(m Message) {
		received <- m
	})
	require.NoError(t, err)
	defer unsub()

	mr.Publish(ChannelKey(4, 10), "{broken")

	_, err = Send(ctx, transport, 10, 4, "see you at 5")
	require.NoError(t, err)

	select {
	case m := <-received:
		assert.Equal(t, "see you at 5", m.Body)
		assert.Equal(t, int64(10), m.From)
		assert.Equal(t, int64(4), m.To)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	assert.Empty(t, received)
}

func TestRedisTransport_ContextEndClosesSubscription(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	transport := NewRedisTransport(rdb, nil)
	channel := ChannelKey(1, 2)
	ctx, cancel := context.WithCancel(context.Background())

	unsub, err := transport.Subscribe(ctx, channel, func(Message) {})
	require.NoError(t, err)
	assert.Equal(t, 1, mr.PubSubNumSub(channel)[channel])

	cancel()
	assert.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Unsubscribing after the context ended is a no-op.
	unsub()
}
