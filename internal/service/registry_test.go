package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geb2701/storefront/internal/notify"
	"github.com/geb2701/storefront/internal/repository/memory"
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

func newTestRegistry() (*SessionRegistry, *memory.StateRepository) {
	repo := memory.NewStateRepository()
	return NewSessionRegistry(StoreDeps{Repo: repo, Logger: newTestLogger()}), repo
}

func TestRegistry_GetReturnsSameStore(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	a, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	b, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	c, err := reg.Get(ctx, "s2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_EmptySessionRejected(t *testing.T) {
	reg, _ := newTestRegistry()

	_, err := reg.Get(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegistry_EvictedSessionIsRestored(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	store, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	store.AddItem(ctx, mate(), 3)

	reg.Evict("s1")
	assert.Equal(t, 0, reg.Len())

	again, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, store, again)
	assert.Equal(t, 3, again.ItemQuantity(1))
}

func TestRegistry_EvictIdle(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	_, _ = reg.Get(ctx, "old")
	now = now.Add(20 * time.Minute)
	_, _ = reg.Get(ctx, "fresh")
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, reg.EvictIdle(10*time.Minute))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx := context.Background()

	stores := make([]*CartStore, 20)
	var wg sync.WaitGroup
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Get(ctx, "shared")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	first, err := reg.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
	for _, s := range stores {
		assert.Same(t, first, s)
	}
}

func TestRegistry_RunJanitorStopsOnCancel(t *testing.T) {
	reg, _ := newTestRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		reg.RunJanitor(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRegistry_EvictionDropsQueuedToasts(t *testing.T) {
	feed := notify.NewFeed(10)
	reg := NewSessionRegistry(StoreDeps{
		Repo:     memory.NewStateRepository(),
		Notifier: feed,
		Logger:   newTestLogger(),
	})
	reg.OnEvict(feed.Forget)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		store, err := reg.Get(ctx, id)
		require.NoError(t, err)
		store.AddItem(ctx, mate(), 1)
	}
	require.Equal(t, 3, feed.Sessions())

	reg.Evict("s1")
	assert.Equal(t, 0, feed.Pending("s1"))
	assert.Equal(t, 2, feed.Sessions())

	assert.Equal(t, 2, reg.EvictIdle(-time.Second))
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, feed.Sessions())
}

func TestRegistry_EvictUnknownSkipsHooks(t *testing.T) {
	reg, _ := newTestRegistry()
	var calls int
	reg.OnEvict(func(string) { calls++ })

	reg.Evict("never-seen")
	assert.Zero(t, calls)
}
