// Package redis opens the go-redis client backing the shared cache store.
//
// [Config] is populated from REDIS_* environment variables. [Connect]
// applies the pool settings on top of the URL and pings the server,
// retrying at startup so the cache service can come up alongside Redis.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	store := cache.NewRedis(client, cache.WithPrefix(cfg.Redis.KeyPrefix))
//
// [Healthcheck] and [Shutdown] plug into the health checker and the
// server's shutdown hooks.
package redis
