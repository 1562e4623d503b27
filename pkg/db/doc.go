// Package db connects the durable PostgreSQL cache backend.
//
// It wraps [github.com/jackc/pgx/v5/pgxpool] with retrying startup, a
// transaction helper, a healthcheck closure and the goose migrations that
// create the cache_entries table used by [github.com/dmitrymomot/ihsan/pkg/cache.Postgres].
//
// # Configuration
//
// [Config] is filled from the environment:
//
//	DATABASE_CONN_URL           - PostgreSQL connection URL
//	DATABASE_MAX_OPEN_CONNS     - Maximum open connections (default: 10)
//	DATABASE_MIN_CONNS          - Minimum idle connections (default: 2)
//	DATABASE_HEALTHCHECK_PERIOD - Health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - Maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - Maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
//
// # Usage
//
//	pool, err := db.Connect(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	if err := db.Migrate(ctx, pool, log); err != nil {
//	    return err
//	}
//	store := cache.NewPostgres(pool)
//
// # Transactions
//
// [WithTx] commits when fn returns nil and rolls back on error or panic:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//	    _, err := tx.Exec(ctx, "DELETE FROM cache_entries WHERE key = $1", key)
//	    return err
//	})
package db
