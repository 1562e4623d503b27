package apiclient

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// HeaderCorrelationID carries the request correlation ID.
const HeaderCorrelationID = "X-Correlation-ID"

type correlationKey struct{}

// WithCorrelationID returns a context whose requests reuse id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the ID stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// ensureCorrelationID returns ctx unchanged if it carries an ID, otherwise a
// child context with a fresh UUID.
func ensureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}

// CorrelationIDExtractor adds correlation_id to log records, for use with
// logger.New.
func CorrelationIDExtractor(ctx context.Context) (slog.Attr, bool) {
	if id := CorrelationID(ctx); id != "" {
		return slog.String("correlation_id", id), true
	}
	return slog.Attr{}, false
}
