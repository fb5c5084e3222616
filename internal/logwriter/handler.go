package logwriter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Handler is a slog.Handler that copies process log records into the
// diagnostic file as formatted lines. Records are queued with Post, so a
// slow disk never blocks the logging goroutine and a full queue drops lines.
type Handler struct {
	w         *Writer
	threshold Level
	loc       *time.Location
	prefix    string // group path, dot separated with a trailing dot
	attrs     []string
}

// NewHandler returns a handler writing to w every record whose mapped level
// passes threshold. Timestamps are rendered in loc; nil means UTC.
func NewHandler(w *Writer, threshold Level, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{w: w, threshold: threshold, loc: loc}
}

// FromSlog maps a slog level onto the diagnostic levels.
func FromSlog(l slog.Level) Level {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelLog
	case l >= slog.LevelDebug:
		return LevelDebug
	}
	return LevelTrace
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return h.threshold.Enabled(FromSlog(l))
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		args = append(args, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		args = appendAttr(args, h.prefix, a)
		return true
	})
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	h.w.Post(FormatLine(t.In(h.loc), FromSlog(r.Level), r.Message, args...))
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = appendAttr(args, h.prefix, a)
	}
	h2.attrs = make([]string, 0, len(h.attrs)+len(args))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range args {
		h2.attrs = append(h2.attrs, a.(string))
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

// appendAttr renders a as key=value, flattening groups.
func appendAttr(args []any, prefix string, a slog.Attr) []any {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return args
	}
	if a.Value.Kind() == slog.KindGroup {
		sub := prefix
		if a.Key != "" {
			sub = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			args = appendAttr(args, sub, ga)
		}
		return args
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " ,") {
		val = fmt.Sprintf("%q", val)
	}
	return append(args, prefix+a.Key+"="+val)
}

var _ slog.Handler = (*Handler)(nil)
