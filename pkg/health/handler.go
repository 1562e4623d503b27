package health

import (
	"encoding/json"
	"maps"
	"mime"
	"net/http"
	"slices"
	"strings"
)

// LivenessHandler always responds OK while the process is serving.
func LivenessHandler() http.HandlerFunc {
	live := &Response{Status: StatusHealthy}
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, live)
	}
}

// ReadinessHandler runs checks on every request and responds 503 if any fail.
// The plain text body names the failing checks in sorted order.
func ReadinessHandler(checks Checks, opts ...Option) http.HandlerFunc {
	cfg := newConfig(opts...)

	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, runChecks(r.Context(), checks, cfg))
	}
}

// Failing returns the sorted names of unhealthy checks.
func (resp *Response) Failing() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(resp.Checks)) {
		if resp.Checks[name].Status == StatusUnhealthy {
			names = append(names, name)
		}
	}
	return names
}

func (resp *Response) httpStatus() int {
	if resp.Status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (resp *Response) text() string {
	if resp.Status != StatusUnhealthy {
		return "OK"
	}
	failing := resp.Failing()
	if len(failing) == 0 {
		return http.StatusText(http.StatusServiceUnavailable)
	}
	return http.StatusText(http.StatusServiceUnavailable) + ": " + strings.Join(failing, ", ")
}

// render writes resp in the negotiated format. HEAD requests get headers only.
func render(w http.ResponseWriter, r *http.Request, resp *Response) {
	status := resp.httpStatus()
	w.Header().Set("Cache-Control", "no-store")

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(resp)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(resp.text()))
	}
}

// wantsJSON honours ?format=json|text first, then any JSON media type in
// Accept that is not refused with q=0.
func wantsJSON(r *http.Request) bool {
	switch r.URL.Query().Get("format") {
	case "json":
		return true
	case "text":
		return false
	}

	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil || params["q"] == "0" {
			continue
		}
		if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
			return true
		}
	}
	return false
}
