package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/geb2701/storefront/pkg/errors"
)

type registryEntry struct {
	store    *CartStore
	lastUsed time.Time
}

// SessionRegistry hands out one CartStore per session, building it on first
// use so the persisted items are loaded exactly when they are needed.
type SessionRegistry struct {
	mu      sync.Mutex
	stores  map[string]*registryEntry
	deps    StoreDeps
	now     func() time.Time
	onEvict []func(sessionID string)
}

// NewSessionRegistry creates an empty registry sharing deps across stores.
func NewSessionRegistry(deps StoreDeps) *SessionRegistry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SessionRegistry{
		stores: make(map[string]*registryEntry),
		deps:   deps,
		now:    time.Now,
	}
}

// Get returns the store for sessionID, restoring it from the repository the
// first time the session is seen.
func (r *SessionRegistry) Get(ctx context.Context, sessionID string) (*CartStore, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	r.mu.Lock()
	if e, ok := r.stores[sessionID]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.store, nil
	}
	r.mu.Unlock()

	// Load outside the lock; a concurrent first request for the same session
	// may build a second store, and whichever lands first wins.
	store := NewCartStore(ctx, sessionID, r.deps)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.stores[sessionID]; ok {
		e.lastUsed = r.now()
		return e.store, nil
	}
	r.stores[sessionID] = &registryEntry{store: store, lastUsed: r.now()}
	return store, nil
}

// OnEvict registers fn to run for every session dropped from memory, so
// per-session state kept elsewhere (such as queued toasts) goes with it.
// Register hooks before the registry is shared.
func (r *SessionRegistry) OnEvict(fn func(sessionID string)) {
	r.onEvict = append(r.onEvict, fn)
}

// Evict forgets sessionID. Its persisted items stay in the repository.
func (r *SessionRegistry) Evict(sessionID string) {
	r.mu.Lock()
	_, ok := r.stores[sessionID]
	delete(r.stores, sessionID)
	r.mu.Unlock()

	if ok {
		r.evicted([]string{sessionID})
	}
}

func (r *SessionRegistry) evicted(ids []string) {
	for _, id := range ids {
		for _, fn := range r.onEvict {
			fn(id)
		}
	}
}

// EvictIdle forgets every store unused for longer than maxIdle and returns
// how many were dropped.
func (r *SessionRegistry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	cutoff := r.now().Add(-maxIdle)
	var ids []string
	for id, e := range r.stores {
		if e.lastUsed.Before(cutoff) {
			delete(r.stores, id)
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	r.evicted(ids)
	return len(ids)
}

// Len returns how many sessions are held in memory.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// RunJanitor evicts idle stores every interval until ctx is done.
func (r *SessionRegistry) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(maxIdle); n > 0 {
				r.deps.Logger.InfoContext(ctx, "evicted idle carts",
					slog.Int("evicted", n),
					slog.Int("remaining", r.Len()),
				)
			}
		}
	}
}
