// Package health serves liveness and readiness endpoints for the cache service.
//
// [LivenessHandler] always answers OK. [ReadinessHandler] runs a set of named
// [Checks] concurrently and answers 503 if any fail. Checks are plain
// func(context.Context) error values, so the Healthcheck closures of pkg/db
// and pkg/redis plug in directly, alongside [PingCheck] for any backend with
// a Ping method and [StoreCheck], which round-trips a sentinel entry through a
// cache.Store:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "store": health.StoreCheck(store),
//	    "redis": redis.Healthcheck(client),
//	}, health.WithTimeout(3*time.Second), health.WithLogger(log)))
//
// Responses are never cached. They are plain text ("OK", or "Service
// Unavailable: redis" naming the failing checks) unless the client sends a
// JSON media type in Accept or ?format=json. HEAD gets the status only:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {
//	    "store": {"status": "healthy", "duration": "41µs"},
//	    "redis": {"status": "unhealthy", "error": "...", "duration": "3s"}
//	  }
//	}
package health
