package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/ihsan/pkg/db"
)

// Postgres is a durable, transactional Store on a pgx connection pool.
// The cache_entries table is created by db.Migrate.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store on an already migrated pool.
//
// Example:
//
//	pool, err := db.Connect(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	if err := db.Migrate(ctx, pool, log); err != nil {
//	    return err
//	}
//	store := cache.NewPostgres(pool)
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get retrieves a value, deleting the row in the same transaction if it
// has expired.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value []byte
		live  bool
	)
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		var exp int64
		err := tx.QueryRow(ctx,
			`SELECT value, expires_at FROM cache_entries WHERE key = $1 FOR UPDATE`, key,
		).Scan(&value, &exp)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if expiredMillis(exp, time.Now()) {
			_, err := tx.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
			return err
		}
		live = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrNotFound
	}
	return value, nil
}

// Set upserts a value. A non-positive ttl never expires.
func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if value == nil {
		value = []byte{}
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO cache_entries (key, value, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
`, key, value, expiresAtMillis(ttl))
	return err
}

// Delete removes a key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	return err
}

// Has reports whether a live entry exists for key.
func (p *Postgres) Has(ctx context.Context, key string) (bool, error) {
	if _, err := p.Get(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Clear removes every entry.
func (p *Postgres) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM cache_entries`)
	return err
}

// Size deletes expired rows and counts the rest in one transaction.
func (p *Postgres) Size(ctx context.Context) (int, error) {
	var n int
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at < $1`, time.Now().UnixMilli(),
		); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	})
	return n, err
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close is a no-op. The pool lifecycle belongs to the caller
// (see pkg/db.Shutdown).
func (p *Postgres) Close() error {
	return nil
}

var _ Store = (*Postgres)(nil)
