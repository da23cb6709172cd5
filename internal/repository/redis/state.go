package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/repository"
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

// StateRepository implements repository.StateRepository on Redis. Each cart
// is one string value whose TTL is refreshed on every save.
type StateRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStateRepository creates a Redis-backed state repository. A zero ttl
// keeps carts forever.
func NewStateRepository(client redis.Cmdable, ttl time.Duration) *StateRepository {
	return &StateRepository{
		client: client,
		ttl:    ttl,
	}
}

// Load reads the cart stored under key.
func (r *StateRepository) Load(ctx context.Context, key string) (domain.Lines, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart state", key)
		}
		return nil, fmt.Errorf("redis get cart state: %w", err)
	}

	items, err := repository.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode cart state %s: %w", key, err)
	}
	return items, nil
}

// Save writes the cart under key with the configured TTL.
func (r *StateRepository) Save(ctx context.Context, key string, items domain.Lines) error {
	data, err := repository.Encode(items)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart state: %w", err)
	}
	return nil
}

// Delete removes the cart stored under key.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del cart state: %w", err)
	}
	return nil
}
