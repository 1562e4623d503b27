package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// Lowest level forwarded to Sentry as a log; errors always become events.
	MinLevel string `env:"SENTRY_MIN_LEVEL" envDefault:"warn"`
}

// NewWithSentry creates a logger that writes to stdout and forwards warnings
// and errors to Sentry. If DSN is empty or Sentry fails to initialize, only
// stdout is used.
func NewWithSentry(cfg Config, sc SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	return newWithSentry(os.Stdout, cfg, sc, extractors...)
}

func newWithSentry(w io.Writer, cfg Config, sc SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	base := newHandler(w, cfg)
	if sc.DSN == "" {
		return slog.New(NewContextHandler(base, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         sc.DSN,
		Environment: sc.Environment,
		EnableLogs:  true,
	}); err != nil {
		slog.New(base).Error("failed to initialize sentry", slog.String("error", err.Error()))
		return slog.New(NewContextHandler(base, extractors...))
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   sentryLogLevels(ParseLevel(sc.MinLevel)),
	}.NewSentryHandler(context.Background())

	return slog.New(NewContextHandler(newFanout(base, sentryHandler), extractors...))
}

// sentryLogLevels lists the levels at or above floor that Sentry keeps as logs.
func sentryLogLevels(floor slog.Level) []slog.Level {
	var out []slog.Level
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l >= floor {
			out = append(out, l)
		}
	}
	return out
}

// SentryShutdown returns a shutdown hook that flushes buffered Sentry events.
func SentryShutdown(timeout time.Duration) func(ctx context.Context) error {
	return func(context.Context) error {
		sentry.Flush(timeout)
		return nil
	}
}
