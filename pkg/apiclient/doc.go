// Package apiclient is the HTTP client side of the cache contract.
//
// GET requests are cached under [Key] ("GET:<fullURL>:") with tags and
// dependencies from a substring-matched [Rule] table. Other methods bypass
// the cache; once they succeed, the matching [InvalidationRule] entries
// invalidate tags, cascade through dependencies and remove keys matching
// patterns:
//
//	api, _ := apiclient.New(upstream, svc)
//	habits, err := apiclient.Get[[]Habit](ctx, api, "/api/habits")
//	_, err = apiclient.Do[Habit](ctx, api, http.MethodPost, "/api/habits/7/complete", nil)
//	// habits and dashboard entries, and any habits analytics, are gone.
//
// Every request carries an X-Correlation-ID header, taken from the context
// ([WithCorrelationID]) or generated. [CorrelationIDExtractor] adds the same
// ID to log records. Non-2xx responses return a [*StatusError]. The client
// never retries; wrap the fetch if retries are wanted.
package apiclient
