package health

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

// sentinelKey is written and removed by StoreCheck.
const sentinelKey = "__health:sentinel"

// Pinger is implemented by backends that can verify their connection
// cheaply: cache.Redis, cache.SQLite and cache.Postgres.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if p == nil {
			return ErrCheckFailed
		}
		if err := p.Ping(ctx); err != nil {
			return errors.Join(ErrCheckFailed, err)
		}
		return nil
	}
}

// StoreCheck round-trips a short-lived sentinel entry through store. It works
// for every backend, including the in-memory one.
func StoreCheck(store cache.Store) CheckFunc {
	return func(ctx context.Context) error {
		want := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := store.Set(ctx, sentinelKey, want, 10*time.Second); err != nil {
			return errors.Join(ErrCheckFailed, err)
		}
		got, err := store.Get(ctx, sentinelKey)
		if err != nil {
			return errors.Join(ErrCheckFailed, err)
		}
		if !bytes.Equal(got, want) {
			return ErrRoundTripMismatch
		}
		if err := store.Delete(ctx, sentinelKey); err != nil {
			return errors.Join(ErrCheckFailed, err)
		}
		return nil
	}
}
