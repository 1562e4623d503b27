package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/ihsan/pkg/cache"
	"github.com/dmitrymomot/ihsan/pkg/logger"
)

// TokenSource returns the bearer token for the next request.
// An empty token sends no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient    *http.Client
	tokens        TokenSource
	logger        *slog.Logger
	strategy      cache.Strategy
	rules         []Rule
	invalidations []InvalidationRule
	ttl           time.Duration

	breakerCooldown time.Duration
	breakerFailures uint32
}

func defaultOptions() *options {
	return &options{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger.NewNope(),
		strategy:      cache.CacheFirst,
		rules:         DefaultRules,
		invalidations: DefaultInvalidations,
		ttl:           5 * time.Minute,
	}
}

// WithHTTPClient sets the underlying HTTP client.
// Default: a client with a 15s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// WithTokenSource enables bearer authentication.
func WithTokenSource(ts TokenSource) Option {
	return func(o *options) {
		o.tokens = ts
	}
}

// WithLogger sets the logger requests are traced to at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithDefaultStrategy sets the fetch strategy for GET requests.
// Default: cache.CacheFirst.
func WithDefaultStrategy(s cache.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithDefaultTTL sets the TTL of cached GET responses. Default: 5m.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		o.ttl = d
	}
}

// WithRules replaces the tag table for GET responses.
func WithRules(rules ...Rule) Option {
	return func(o *options) {
		o.rules = rules
	}
}

// WithInvalidations replaces the invalidation table for mutating requests.
func WithInvalidations(rules ...InvalidationRule) Option {
	return func(o *options) {
		o.invalidations = rules
	}
}

// WithCircuitBreaker stops calling the upstream after failures consecutive
// transport errors or 5xx responses. While open, requests fail with
// ErrCircuitOpen until cooldown has passed and a trial request succeeds.
// Zero failures disables the breaker. Default: disabled.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) Option {
	return func(o *options) {
		o.breakerFailures = failures
		o.breakerCooldown = cooldown
	}
}
