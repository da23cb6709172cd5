// Package memory keeps cart state in process. It backs local development and
// the service tests.
package memory

import (
	"context"
	"sync"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/repository"
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

// StateRepository stores encoded envelopes so callers never share memory
// with what is persisted.
type StateRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStateRepository creates an empty in-memory repository.
func NewStateRepository() *StateRepository {
	return &StateRepository{blobs: make(map[string][]byte)}
}

func (r *StateRepository) Load(_ context.Context, key string) (domain.Lines, error) {
	r.mu.RLock()
	data, ok := r.blobs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("cart state", key)
	}
	return repository.Decode(data)
}

func (r *StateRepository) Save(_ context.Context, key string, items domain.Lines) error {
	data, err := repository.Encode(items)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.blobs[key] = data
	r.mu.Unlock()
	return nil
}

func (r *StateRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.blobs, key)
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored carts.
func (r *StateRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}
