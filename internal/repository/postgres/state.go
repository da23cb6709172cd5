package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/geb2701/storefront/internal/domain"
	"github.com/geb2701/storefront/internal/repository"
	"github.com/geb2701/storefront/pkg/database"
	apperrors "github.com/geb2701/storefront/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema files for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	loadStateSQL = `SELECT state FROM cart_state
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())`

	saveStateSQL = `INSERT INTO cart_state (key, state, updated_at, expires_at)
		VALUES ($1, $2, NOW(), $3)
		ON CONFLICT (key) DO UPDATE
		SET state = EXCLUDED.state, updated_at = NOW(), expires_at = EXCLUDED.expires_at`

	deleteStateSQL = `DELETE FROM cart_state WHERE key = $1`

	purgeExpiredSQL = `DELETE FROM cart_state WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
)

// StateRepository implements repository.StateRepository on a single
// key/value table holding the JSON envelope.
type StateRepository struct {
	db  database.DBTX
	ttl time.Duration
	now func() time.Time
}

// NewStateRepository creates a PostgreSQL-backed state repository. A zero
// ttl stores rows without an expiry.
func NewStateRepository(db database.DBTX, ttl time.Duration) *StateRepository {
	return &StateRepository{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Load reads the cart stored under key, ignoring expired rows.
func (r *StateRepository) Load(ctx context.Context, key string) (items domain.Lines, err error) {
	ctx, end := database.TraceQuery(ctx, "LoadCartState", loadStateSQL)
	defer func() { end(err) }()

	var data []byte
	if err = r.db.QueryRow(ctx, loadStateSQL, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("cart state", key)
		}
		return nil, fmt.Errorf("select cart state: %w", err)
	}

	items, err = repository.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode cart state %s: %w", key, err)
	}
	return items, nil
}

// Save upserts the cart under key.
func (r *StateRepository) Save(ctx context.Context, key string, items domain.Lines) (err error) {
	data, err := repository.Encode(items)
	if err != nil {
		return err
	}

	ctx, end := database.TraceQuery(ctx, "SaveCartState", saveStateSQL)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, saveStateSQL, key, data, r.expiresAt()); err != nil {
		return fmt.Errorf("upsert cart state: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (r *StateRepository) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteCartState", deleteStateSQL)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, deleteStateSQL, key); err != nil {
		return fmt.Errorf("delete cart state: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows past their expiry and returns how many went.
func (r *StateRepository) PurgeExpired(ctx context.Context) (n int64, err error) {
	ctx, end := database.TraceQuery(ctx, "PurgeExpiredCartState", purgeExpiredSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, purgeExpiredSQL)
	if err != nil {
		return 0, fmt.Errorf("purge expired cart state: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *StateRepository) expiresAt() *time.Time {
	if r.ttl <= 0 {
		return nil
	}
	t := r.now().UTC().Add(r.ttl)
	return &t
}
