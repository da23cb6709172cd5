package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/repository"
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

func setupTestRedis(t *testing.T) (*StateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStateRepository(client, 24*time.Hour), mr
}

func sampleItems() domain.Lines {
	return domain.Lines{
		{
			Product: domain.Product{
				ID:            1,
				Name:          "Mate Imperial",
				Price:         domain.Price("100"),
				DiscountPrice: domain.PricePtr("80"),
				Stock:         5,
				Category:      domain.Category{ID: 3, Name: "Mates"},
			},
			Quantity: 2,
		},
	}
}

var key = repository.StateKey("sess-001")

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestStateRepository_Load_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	data, err := repository.Encode(sampleItems())
	require.NoError(t, err)
	require.NoError(t, mr.Set(key, string(data)))

	got, err := repo.Load(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Product.ID)
	assert.Equal(t, "Mate Imperial", got[0].Product.Name)
	assert.Equal(t, 2, got[0].Quantity)
	assert.True(t, got[0].LineTotal().Equal(domain.Price("160")))
}

func TestStateRepository_Load_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.Load(context.Background(), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStateRepository_Load_CorruptBlob(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(key, "{broken"))

	_, err := repo.Load(context.Background(), key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "decode cart state")
}

func TestStateRepository_Load_ConnectionError(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, err := repo.Load(context.Background(), key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get cart state")
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestStateRepository_Save_SetsValueAndTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, repo.Save(context.Background(), key, sampleItems()))

	raw, err := mr.Get(key)
	require.NoError(t, err)
	assert.Contains(t, raw, `"version":0`)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}

func TestStateRepository_Save_Overwrites(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, key, sampleItems()))
	require.NoError(t, repo.Save(ctx, key, domain.Lines{}))

	got, err := repo.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStateRepository_Save_ExpiresAfterTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, key, sampleItems()))
	mr.FastForward(25 * time.Hour)

	_, err := repo.Load(ctx, key)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestStateRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, key, sampleItems()))
	require.NoError(t, repo.Delete(ctx, key))
	assert.False(t, mr.Exists(key))

	// Deleting again is fine.
	require.NoError(t, repo.Delete(ctx, key))
}
