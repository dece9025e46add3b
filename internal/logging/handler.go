package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes added to every record at the time it
// is handled, such as the number of live sessions.
type ContextProvider func() []slog.Attr

type ctxAttrsKey struct{}

// ContextWith returns a copy of ctx carrying attrs. Records logged with
// the returned context through a Handler get them appended.
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

// Handler sends each record to every sink handler. Provider and context
// attributes are resolved once per record before the fan-out.
type Handler struct {
	sinks    []slog.Handler
	provider ContextProvider
}

// NewHandler returns a Handler over the non-nil sinks.
func NewHandler(provider ContextProvider, sinks ...slog.Handler) *Handler {
	h := &Handler{provider: provider}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	return h
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to every enabled sink. A failing sink does not stop the
// others; all failures are returned joined.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	r.AddAttrs(attrsFrom(ctx)...)

	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *Handler) derive(f func(slog.Handler) slog.Handler) *Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = f(s)
	}
	return &Handler{sinks: sinks, provider: h.provider}
}
