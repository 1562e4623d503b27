// Package logger builds the structured loggers used across the cache service.
//
// Loggers are plain *slog.Logger values. [New] picks a JSON or text handler
// and level from [Config] (LOG_LEVEL, LOG_FORMAT) and wraps it with
// [NewContextHandler], which adds context-derived attributes on every call:
//
//	log := logger.New(cfg.Log, apiclient.CorrelationIDExtractor)
//	log.InfoContext(ctx, "cache warmed", slog.Int("entries", n))
//	// {"level":"INFO","msg":"cache warmed","entries":4,"correlation_id":"..."}
//
// [NewWithSentry] additionally fans warnings and errors out to Sentry when
// SENTRY_DSN is set. Without a DSN, or when Sentry fails to initialize, it
// logs to stdout only, so the same wiring works locally and in production.
// Register [SentryShutdown] as a shutdown hook to flush pending events.
//
// [NewNope] discards everything and is the default for library packages.
package logger
