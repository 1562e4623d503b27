package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func extractTestID(ctx context.Context) (slog.Attr, bool) {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return slog.String("test_id", v), true
	}
	return slog.Attr{}, false
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("json format with extractor", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{Level: "info", Format: FormatJSON}, extractTestID, nil)

		ctx := context.WithValue(context.Background(), ctxKey{}, "abc-123")
		log.InfoContext(ctx, "cache warmed", slog.Int("entries", 4))

		rec := decodeLine(t, &buf)
		require.Equal(t, "cache warmed", rec["msg"])
		require.Equal(t, "abc-123", rec["test_id"])
		require.EqualValues(t, 4, rec["entries"])
	})

	t.Run("extractor skipped when context is empty", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{}, extractTestID)
		log.Info("no id")

		rec := decodeLine(t, &buf)
		require.NotContains(t, rec, "test_id")
	})

	t.Run("level filters output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{Level: "warn"})
		log.Info("dropped")
		require.Zero(t, buf.Len())

		log.Warn("kept")
		require.Contains(t, buf.String(), "kept")
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{Format: "TEXT"})
		log.Info("plain", slog.String("key", "k"))

		require.Contains(t, buf.String(), "msg=plain")
		require.Contains(t, buf.String(), "key=k")
	})

	t.Run("extracted attrs stay top level inside groups", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{}, extractTestID).
			With(slog.String("component", "cache")).
			WithGroup("entry").
			With(slog.String("key", "user:1"))

		ctx := context.WithValue(context.Background(), ctxKey{}, "id-2")
		log.InfoContext(ctx, "evicted", slog.Int("size", 10))

		rec := decodeLine(t, &buf)
		require.Equal(t, "id-2", rec["test_id"])
		require.Equal(t, "cache", rec["component"])
		require.Equal(t, map[string]any{"key": "user:1", "size": float64(10)}, rec["entry"])
	})

	t.Run("grouped logger without context values", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{}, extractTestID).WithGroup("entry")
		log.Info("plain", slog.String("key", "k"))

		rec := decodeLine(t, &buf)
		require.NotContains(t, rec, "test_id")
		require.Equal(t, map[string]any{"key": "k"}, rec["entry"])
	})

	t.Run("with attrs keeps extractors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, Config{}, extractTestID).With(slog.String("component", "cache"))

		ctx := context.WithValue(context.Background(), ctxKey{}, "id-1")
		log.InfoContext(ctx, "hello")

		rec := decodeLine(t, &buf)
		require.Equal(t, "cache", rec["component"])
		require.Equal(t, "id-1", rec["test_id"])
	})
}

func TestNewContextHandler(t *testing.T) {
	t.Parallel()

	base := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	require.Same(t, base, NewContextHandler(base))
	require.Same(t, base, NewContextHandler(base, nil, nil))
	require.IsType(t, &contextHandler{}, NewContextHandler(base, extractTestID))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "loud", want: slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := NewNope()
	require.False(t, log.Enabled(context.Background(), slog.LevelError))
	log.Error("discarded")
}

// failingHandler accepts every level and fails every record.
type failingHandler struct{ calls *int }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h failingHandler) Handle(context.Context, slog.Record) error {
	*h.calls++
	return errors.New("sink down")
}
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h failingHandler) WithGroup(string) slog.Handler      { return h }

func TestFanout(t *testing.T) {
	t.Parallel()

	t.Run("failure does not stop other handlers", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		calls := 0
		h := newFanout(failingHandler{calls: &calls}, slog.NewJSONHandler(&buf, nil))

		slog.New(h).Info("fan out")

		require.Equal(t, 1, calls)
		require.Contains(t, buf.String(), "fan out")
	})

	t.Run("enabled when any handler is", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		h := newFanout(
			slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
			slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
		require.True(t, h.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("branch errors are joined", func(t *testing.T) {
		t.Parallel()

		calls := 0
		h := newFanout(failingHandler{calls: &calls}, failingHandler{calls: &calls})

		err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "both fail", 0))
		require.Equal(t, 2, calls)
		require.ErrorContains(t, err, "branch 0")
		require.ErrorContains(t, err, "branch 1")
	})

	t.Run("single branch is returned unwrapped", func(t *testing.T) {
		t.Parallel()

		base := slog.NewJSONHandler(&bytes.Buffer{}, nil)
		require.Same(t, base, newFanout(nil, base))
	})

	t.Run("groups propagate", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(newFanout(slog.NewJSONHandler(&buf, nil))).WithGroup("cache")
		log.Info("grouped", slog.String("key", "k"))

		rec := decodeLine(t, &buf)
		require.Equal(t, map[string]any{"key": "k"}, rec["cache"])
	})
}

func TestNewWithSentry(t *testing.T) {
	t.Parallel()

	t.Run("empty dsn logs to writer only", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := newWithSentry(&buf, Config{}, SentryConfig{}, extractTestID)
		log.Warn("local only")

		require.Contains(t, buf.String(), "local only")
	})

	t.Run("invalid dsn falls back to writer", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := newWithSentry(&buf, Config{}, SentryConfig{DSN: "not a dsn"})
		require.Contains(t, buf.String(), "failed to initialize sentry")

		buf.Reset()
		log.Info("still logging")
		require.Contains(t, buf.String(), "still logging")
	})
}

func TestSentryLogLevels(t *testing.T) {
	t.Parallel()

	require.Equal(t, []slog.Level{slog.LevelWarn, slog.LevelError}, sentryLogLevels(slog.LevelWarn))
	require.Equal(t, []slog.Level{slog.LevelError}, sentryLogLevels(slog.LevelError))
	require.Len(t, sentryLogLevels(slog.LevelDebug), 4)
}
