package logging

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout sends each record to the console sink and the system_logs sink.
// A failing sink does not keep the record from the others; their errors
// are joined.
type Fanout struct {
	sinks []slog.Handler
}

func NewFanout(sinks ...slog.Handler) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		// handlers may retain the record's attrs
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *Fanout) each(fn func(slog.Handler) slog.Handler) *Fanout {
	sinks := make([]slog.Handler, len(f.sinks))
	for i, h := range f.sinks {
		sinks[i] = fn(h)
	}
	return &Fanout{sinks: sinks}
}
