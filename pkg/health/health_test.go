package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ihsan/pkg/cache"
	"github.com/dmitrymomot/ihsan/pkg/health"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	t.Run("plain text", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		health.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set("Accept", "application/json")
		health.LivenessHandler()(rec, req)

		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	})
}

func TestContentNegotiation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		accept string
		json   bool
	}{
		{name: "default is text", target: "/health/live"},
		{name: "format query", target: "/health/live?format=json", json: true},
		{name: "format text wins over accept", target: "/health/live?format=text", accept: "application/json"},
		{name: "accept list", target: "/health/live", accept: "text/html, application/json;q=0.9", json: true},
		{name: "json suffix", target: "/health/live", accept: "application/health+json", json: true},
		{name: "refused json", target: "/health/live", accept: "application/json;q=0, text/plain"},
		{name: "malformed accept", target: "/health/live", accept: ";;;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			health.LivenessHandler()(rec, req)

			if tt.json {
				require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
			} else {
				require.Equal(t, "OK", rec.Body.String())
			}
		})
	}
}

func TestResponse_Failing(t *testing.T) {
	t.Parallel()

	resp := health.Run(context.Background(), health.Checks{"b": fail, "a": fail, "c": ok})
	require.Equal(t, []string{"a", "b"}, resp.Failing())
	require.Nil(t, (&health.Response{Status: health.StatusHealthy}).Failing())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	t.Run("all checks pass", func(t *testing.T) {
		t.Parallel()

		h := health.ReadinessHandler(health.Checks{"a": ok, "b": ok})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK", rec.Body.String())
	})

	t.Run("failing check returns 503 with details", func(t *testing.T) {
		t.Parallel()

		h := health.ReadinessHandler(health.Checks{"store": ok, "redis": fail})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready?format=json", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp health.Response
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, health.StatusUnhealthy, resp.Status)
		require.Equal(t, health.StatusHealthy, resp.Checks["store"].Status)
		require.Equal(t, "connection refused", resp.Checks["redis"].Error)
		require.NotEmpty(t, resp.Checks["redis"].Duration)
	})

	t.Run("plain text failure", func(t *testing.T) {
		t.Parallel()

		h := health.ReadinessHandler(health.Checks{"redis": fail})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "Service Unavailable: redis", rec.Body.String())
		require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	})

	t.Run("plain text lists failing checks sorted", func(t *testing.T) {
		t.Parallel()

		h := health.ReadinessHandler(health.Checks{"store": ok, "redis": fail, "postgres": fail})
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, "Service Unavailable: postgres, redis", rec.Body.String())
	})

	t.Run("head has status without body", func(t *testing.T) {
		t.Parallel()

		h := health.ReadinessHandler(health.Checks{"redis": fail})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodHead, "/health/ready", nil)
		req.Header.Set("Accept", "application/json")
		h(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Empty(t, rec.Body.String())
	})

	t.Run("responses are not cached", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		health.ReadinessHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	})

	t.Run("no checks is healthy", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		health.ReadinessHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	start := time.Now()
	resp := health.Run(context.Background(), health.Checks{"slow": slow, "fast": ok},
		health.WithTimeout(50*time.Millisecond))

	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, health.StatusUnhealthy, resp.Status)
	require.Contains(t, resp.Checks["slow"].Error, health.ErrCheckTimeout.Error())
	require.Equal(t, health.StatusHealthy, resp.Checks["fast"].Status)
}

func TestPingCheck(t *testing.T) {
	t.Parallel()

	require.NoError(t, health.PingCheck(pingerFunc(ok))(context.Background()))
	require.ErrorIs(t, health.PingCheck(pingerFunc(fail))(context.Background()), health.ErrCheckFailed)
	require.ErrorIs(t, health.PingCheck(nil)(context.Background()), health.ErrCheckFailed)
}

func TestStoreCheck(t *testing.T) {
	t.Parallel()

	t.Run("round trips through the store", func(t *testing.T) {
		t.Parallel()

		store := cache.NewMemory()
		defer store.Close()

		require.NoError(t, health.StoreCheck(store)(context.Background()))

		n, err := store.Size(context.Background())
		require.NoError(t, err)
		require.Zero(t, n, "sentinel entry is removed")
	})

	t.Run("closed store fails", func(t *testing.T) {
		t.Parallel()

		store := cache.NewMemory()
		require.NoError(t, store.Close())

		err := health.StoreCheck(store)(context.Background())
		require.ErrorIs(t, err, health.ErrCheckFailed)
		require.ErrorIs(t, err, cache.ErrClosed)
	})
}
