package chat

import (
	"context"
	"sync"
	"time"
)

// Bus provides in-process pub/sub for chat messages.
type Bus struct {
	subscribers map[string]map[int]Handler
	nextID      int
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for channel.
func (b *Bus) Subscribe(ctx context.Context, channel string, onMessage Handler) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[int]Handler)
	}
	b.subscribers[channel][id] = onMessage
	b.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[channel], id)
			if len(b.subscribers[channel]) == 0 {
				delete(b.subscribers, channel)
			}
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				unsubscribe()
			case <-stop:
			}
		}()
	}
	return unsubscribe, nil
}

// Publish notifies subscribers of channel.
func (b *Bus) Publish(_ context.Context, channel string, msg Message) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[channel]))
	for _, h := range b.subscribers[channel] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Subscribers returns how many handlers listen on channel.
func (b *Bus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}
