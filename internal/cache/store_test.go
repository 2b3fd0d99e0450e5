package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl, WithPrefix("bb:")), mr
}

func TestStore_SetGet(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	s.Set(ctx, "listing:course:1", entry{ID: 1, Name: "Algebra"})
	assert.True(t, mr.Exists("bb:listing:course:1"))

	var got entry
	require.True(t, s.Get(ctx, "listing:course:1", &got))
	assert.Equal(t, entry{ID: 1, Name: "Algebra"}, got)

	assert.False(t, s.Get(ctx, "listing:course:2", &got))
}

func TestStore_Expiry(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	s.Set(ctx, "k", entry{ID: 1})
	mr.FastForward(2 * time.Minute)

	var got entry
	assert.False(t, s.Get(ctx, "k", &got))
}

func TestStore_UndecodableEntryIsMiss(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	require.NoError(t, mr.Set("bb:k", "not json"))

	var got entry
	assert.False(t, s.Get(context.Background(), "k", &got))
}

func TestStore_Invalidate(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	s.Set(ctx, "listing:live_session", []entry{{ID: 7}})
	s.Set(ctx, "listing:live_session:7", entry{ID: 7})
	s.Set(ctx, "listing:course", []entry{{ID: 1}})

	require.NoError(t, s.Invalidate(ctx, "listing:live_session", "listing:live_session:7"))
	assert.False(t, mr.Exists("bb:listing:live_session"))
	assert.False(t, mr.Exists("bb:listing:live_session:7"))
	assert.True(t, mr.Exists("bb:listing:course"))

	assert.NoError(t, s.Invalidate(ctx))
}

func TestStore_InvalidatePrefix(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	for _, k := range []string{"listing:course", "listing:course:1", "listing:course:2", "listing:live_session"} {
		s.Set(ctx, k, entry{})
	}

	n, err := s.InvalidatePrefix(ctx, "listing:course")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, mr.Exists("bb:listing:live_session"))
}

func TestStore_Disabled(t *testing.T) {
	ctx := context.Background()

	var nilStore *Store
	var got entry
	assert.False(t, nilStore.Get(ctx, "k", &got))
	nilStore.Set(ctx, "k", entry{})
	assert.NoError(t, nilStore.Invalidate(ctx, "k"))
	assert.NoError(t, nilStore.Ping(ctx))

	assert.False(t, nilStore.Enabled())

	s, mr := newStore(t, 0)
	assert.False(t, s.Enabled())
	s.Set(ctx, "k", entry{ID: 1})
	assert.False(t, mr.Exists("bb:k"))

	on, _ := newStore(t, time.Minute)
	assert.True(t, on.Enabled())
}

func TestStore_Ping(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	assert.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
