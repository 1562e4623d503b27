package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

// Client issues JSON requests against the app API. GET responses go through
// the cache; successful mutating requests invalidate the entries they affect.
type Client struct {
	svc     *cache.Service
	opts    *options
	breaker *gobreaker.CircuitBreaker[response]
	baseURL string
}

// response is a fully read upstream response.
type response struct {
	body   []byte
	status int
}

// New creates a Client for the API rooted at baseURL.
//
// Example:
//
//	api, err := apiclient.New("https://api.example.com", svc,
//	    apiclient.WithTokenSource(session.Token),
//	)
func New(baseURL string, svc *cache.Service, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{
		svc:     svc,
		opts:    o,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	if o.breakerFailures > 0 {
		c.breaker = newBreaker(u.Host, o.breakerFailures, o.breakerCooldown, o.logger)
	}
	return c, nil
}

// URL returns the absolute URL for path.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Get fetches path through the cache. Tags and dependencies come from the
// rule table; opts are applied after the client defaults and may override
// the strategy or TTL.
//
// Example:
//
//	habits, err := apiclient.Get[[]Habit](ctx, api, "/api/habits",
//	    cache.WithStrategy(cache.StaleWhileRevalidate),
//	)
func Get[T any](ctx context.Context, c *Client, path string, opts ...cache.EntryOption) (T, error) {
	ctx, _ = ensureCorrelationID(ctx)
	fullURL := c.URL(path)
	tags, deps := resolveRules(c.opts.rules, path)

	entry := append([]cache.EntryOption{
		cache.WithStrategy(c.opts.strategy),
		cache.WithTTL(c.opts.ttl),
		cache.WithTags(tags...),
		cache.WithDependencies(deps...),
	}, opts...)

	return cache.Fetch(ctx, c.svc, Key(http.MethodGet, fullURL, nil), func(ctx context.Context) (T, error) {
		return send[T](ctx, c, http.MethodGet, fullURL, nil)
	}, entry...)
}

// Do sends a request that bypasses the cache. After a successful mutating
// request the matching invalidation rules are applied; invalidation errors
// are logged, not returned.
func Do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	ctx, _ = ensureCorrelationID(ctx)

	v, err := send[T](ctx, c, method, c.URL(path), body)
	if err != nil {
		return v, err
	}

	if isMutating(method) {
		if _, err := c.Invalidate(ctx, method, path); err != nil {
			c.opts.logger.WarnContext(ctx, "cache invalidation after mutation failed",
				slog.String("method", method),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
	return v, nil
}

// Invalidate applies the invalidation rules matching method and path and
// returns how many entries were removed. It is exported for callers that
// replay mutations out of band, such as an offline sync queue.
func (c *Client) Invalidate(ctx context.Context, method, path string) (int, error) {
	set := resolveInvalidations(c.opts.invalidations, method, path)
	if set.empty() {
		return 0, nil
	}

	var (
		removed int
		errs    []error
	)
	run := func(opts cache.InvalidateOptions) {
		n, err := c.svc.Invalidate(ctx, opts)
		removed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(set.tags) > 0 {
		run(cache.InvalidateOptions{Strategy: cache.InvalidateTag, Tags: set.tags})
	}
	if len(set.deps) > 0 {
		run(cache.InvalidateOptions{Strategy: cache.InvalidateDependency, Dependencies: set.deps, Cascade: true})
	}
	for _, p := range set.patterns {
		run(cache.InvalidateOptions{Strategy: cache.InvalidatePattern, Pattern: p})
	}

	c.opts.logger.DebugContext(ctx, "cache invalidated",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("removed", removed),
	)
	return removed, errors.Join(errs...)
}

// WarmEntries builds warm entries that load each path's raw JSON, keyed and
// tagged exactly as Get would cache them.
func (c *Client) WarmEntries(paths ...string) []cache.WarmEntry {
	out := make([]cache.WarmEntry, 0, len(paths))
	for _, p := range paths {
		fullURL := c.URL(p)
		tags, deps := resolveRules(c.opts.rules, p)
		out = append(out, cache.WarmEntry{
			Key:          Key(http.MethodGet, fullURL, nil),
			Tags:         tags,
			Dependencies: deps,
			TTL:          c.opts.ttl,
			Fetcher: cache.WarmFunc(func(ctx context.Context) (json.RawMessage, error) {
				ctx, _ = ensureCorrelationID(ctx)
				return send[json.RawMessage](ctx, c, http.MethodGet, fullURL, nil)
			}),
		})
	}
	return out
}

// send performs one request and decodes a JSON response into T.
// An empty response body yields the zero value.
func send[T any](ctx context.Context, c *Client, method, fullURL string, body any) (T, error) {
	var zero T

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return zero, errors.Join(ErrEncodeRequest, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := CorrelationID(ctx); id != "" {
		req.Header.Set(HeaderCorrelationID, id)
	}
	if c.opts.tokens != nil {
		token, err := c.opts.tokens(ctx)
		if err != nil {
			return zero, errors.Join(ErrToken, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.roundTrip(req)
	if err != nil {
		return zero, err
	}

	c.opts.logger.DebugContext(ctx, "api request",
		slog.String("method", method),
		slog.String("url", fullURL),
		slog.Int("status", resp.status),
		slog.Duration("duration", time.Since(start)),
	)

	if len(bytes.TrimSpace(resp.body)) == 0 {
		return zero, nil
	}

	var v T
	if err := json.Unmarshal(resp.body, &v); err != nil {
		return zero, errors.Join(ErrDecodeResponse, err)
	}
	return v, nil
}

// roundTrip sends req through the circuit breaker when one is configured.
// Non-2xx responses are returned as *StatusError.
func (c *Client) roundTrip(req *http.Request) (response, error) {
	if c.breaker == nil {
		return c.do(req)
	}

	resp, err := c.breaker.Execute(func() (response, error) { return c.do(req) })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return response{}, errors.Join(ErrCircuitOpen, err)
	}
	return resp, err
}

func (c *Client) do(req *http.Request) (response, error) {
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{status: resp.StatusCode}, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       payload,
		}
	}
	return response{body: payload, status: resp.StatusCode}, nil
}
