package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// ContextExtractor extracts a slog attribute from context, reporting false
// when the context carries nothing to log.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// NewContextHandler wraps next so every record carries the attributes its
// extractors find in the logging context. Extracted attributes stay at the
// top level of the record even when the logger was scoped with WithGroup,
// so a correlation ID is always found under the same key.
// Nil extractors are dropped; with none left next is returned as is.
func NewContextHandler(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	extractors = slices.DeleteFunc(slices.Clone(extractors), func(ex ContextExtractor) bool { return ex == nil })
	if len(extractors) == 0 {
		return next
	}
	return &contextHandler{root: next, scoped: next, extractors: extractors}
}

type contextHandler struct {
	root       slog.Handler
	scoped     slog.Handler // root with scope applied
	scope      []scopeStep
	grouped    bool
	extractors []ContextExtractor
}

// scopeStep replays one WithAttrs or WithGroup call.
type scopeStep struct {
	group string
	attrs []slog.Attr
}

func (s scopeStep) apply(h slog.Handler) slog.Handler {
	if s.group != "" {
		return h.WithGroup(s.group)
	}
	return h.WithAttrs(s.attrs)
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.scoped.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	var found []slog.Attr
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			found = append(found, attr)
		}
	}
	if len(found) == 0 {
		return h.scoped.Handle(ctx, rec)
	}
	if !h.grouped {
		rec.AddAttrs(found...)
		return h.scoped.Handle(ctx, rec)
	}

	// Record attributes land inside the open groups, so the extracted ones
	// are attached to the root and the scope is rebuilt on top of them.
	target := h.root.WithAttrs(found)
	for _, step := range h.scope {
		target = step.apply(target)
	}
	return target.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.push(scopeStep{attrs: slices.Clone(attrs)})
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.push(scopeStep{group: name})
}

func (h *contextHandler) push(step scopeStep) *contextHandler {
	return &contextHandler{
		root:       h.root,
		scoped:     step.apply(h.scoped),
		scope:      append(slices.Clip(h.scope), step),
		grouped:    h.grouped || step.group != "",
		extractors: h.extractors,
	}
}

// fanout delivers each record to every branch enabled for its level.
// Every enabled branch sees the record; their errors are joined.
type fanout struct {
	branches []slog.Handler
}

// newFanout drops nil branches and returns a lone branch unwrapped.
func newFanout(branches ...slog.Handler) slog.Handler {
	branches = slices.DeleteFunc(slices.Clone(branches), func(h slog.Handler) bool { return h == nil })
	if len(branches) == 1 {
		return branches[0]
	}
	return &fanout{branches: branches}
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f.branches, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f *fanout) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for i, h := range f.branches {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("logger: branch %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) each(fn func(slog.Handler) slog.Handler) *fanout {
	out := make([]slog.Handler, len(f.branches))
	for i, h := range f.branches {
		out[i] = fn(h)
	}
	return &fanout{branches: out}
}
