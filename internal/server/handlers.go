package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/ihsan/pkg/cache"
)

// maxBodyBytes caps admin request bodies.
const maxBodyBytes = 64 << 10

type statsResponse struct {
	Metrics cache.Metrics     `json:"metrics"`
	Memory  cache.MemoryUsage `json:"memory"`
}

type entryResponse struct {
	Value    json.RawMessage      `json:"value,omitempty"`
	Metadata *cache.EntryMetadata `json:"metadata,omitempty"`
	Key      string               `json:"key"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	usage, err := s.svc.MemoryUsage(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Metrics: s.svc.Metrics(), Memory: usage})
}

func (s *Server) handleKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"keys": s.svc.Keys()})
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.svc.GetRaw(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := entryResponse{Key: key}
	if json.Valid(data) {
		resp.Value = data
	}
	if meta, ok := s.svc.Metadata(key); ok {
		resp.Metadata = &meta
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Delete(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var opts cache.InvalidateOptions
	if err := decodeJSON(r, &opts); err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.svc.Invalidate(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "cache invalidated",
		slog.String("strategy", string(opts.Strategy)),
		slog.Int("removed", n),
	)
	writeJSON(w, http.StatusOK, removedResponse{Removed: n})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, _ *http.Request) {
	s.svc.ResetMetrics()
	w.WriteHeader(http.StatusNoContent)
}

// keyParam returns the {key} segment, which clients percent-encode because
// cache keys contain slashes and colons.
func keyParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "key")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrInvalidBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
