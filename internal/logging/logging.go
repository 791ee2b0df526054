// Package logging builds the bot's structured logger.
//
// Every storage read or write is logged with a short log_id so that a
// line in the error channel can be matched to the full log. Records at
// error level are additionally handed to a Sink, which the Discord layer
// points at the configured error channel once it is connected.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Sink receives a one-line rendering of each forwarded record.
type Sink func(line string)

// NewLogID returns a short random identifier for correlating log lines.
func NewLogID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to w and the Forwarder wrapping it.
func New(w io.Writer, level string) (*slog.Logger, *Forwarder) {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	fwd := NewForwarder(inner, slog.LevelError)
	return slog.New(fwd), fwd
}

// Forwarder is a slog.Handler that passes every record to an inner
// handler and mirrors records at or above a threshold to a Sink.
type Forwarder struct {
	inner slog.Handler
	min   slog.Level
	sink  *atomic.Pointer[Sink]
	attrs []slog.Attr
	group string
}

// NewForwarder wraps inner. Records at min or above go to the sink once
// one is installed with SetSink.
func NewForwarder(inner slog.Handler, min slog.Level) *Forwarder {
	return &Forwarder{inner: inner, min: min, sink: new(atomic.Pointer[Sink])}
}

// SetSink installs s. A nil s stops forwarding.
func (f *Forwarder) SetSink(s Sink) {
	if s == nil {
		f.sink.Store(nil)
		return
	}
	f.sink.Store(&s)
}

func (f *Forwarder) Enabled(ctx context.Context, level slog.Level) bool {
	return f.inner.Enabled(ctx, level) || level >= f.min
}

func (f *Forwarder) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if f.inner.Enabled(ctx, r.Level) {
		err = f.inner.Handle(ctx, r)
	}
	if r.Level < f.min {
		return err
	}
	if sink := f.sink.Load(); sink != nil {
		(*sink)(f.render(r))
	}
	return err
}

func (f *Forwarder) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *f
	clone.inner = f.inner.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), f.attrs...), f.qualify(attrs)...)
	return &clone
}

func (f *Forwarder) WithGroup(name string) slog.Handler {
	clone := *f
	clone.inner = f.inner.WithGroup(name)
	if f.group != "" {
		clone.group = f.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func (f *Forwarder) qualify(attrs []slog.Attr) []slog.Attr {
	if f.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: f.group + "." + a.Key, Value: a.Value}
	}
	return out
}

func (f *Forwarder) render(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Level, r.Message)
	for _, a := range f.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, q := range f.qualify([]slog.Attr{a}) {
			fmt.Fprintf(&b, " %s=%v", q.Key, q.Value)
		}
		return true
	})
	return b.String()
}
