package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/jit/internal/ui/output"
	"go.trai.ch/jit/internal/ui/style"
)

// PrettyHandler is a slog.Handler producing one colored line per record.
type PrettyHandler struct {
	out   *termenv.Output
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewPrettyHandler creates a PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes r.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var msg string
	var color lipgloss.Color

	switch {
	case r.Level >= slog.LevelError:
		msg, color = style.Cross+" "+r.Message, style.Red
	case r.Level >= slog.LevelWarn:
		msg, color = style.Warning+" "+r.Message, style.Yellow
	case r.Level >= slog.LevelInfo:
		msg, color = r.Message, style.Text
	default:
		msg, color = style.Trace+" "+r.Message, style.Muted
	}

	parts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, attr := range h.attrs {
		parts = appendAttr(parts, h.group, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		parts = appendAttr(parts, h.group, attr)
		return true
	})
	if len(parts) > 0 {
		msg += " " + strings.Join(parts, " ")
	}

	_, err := h.out.WriteString(output.Paint(h.out, msg, color) + "\n")
	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &PrettyHandler{
		out:   h.out,
		level: h.level,
		attrs: newAttrs,
		group: h.group,
	}
}

// WithGroup returns a new Handler that prefixes later keys with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{
		out:   h.out,
		level: h.level,
		attrs: h.attrs,
		group: qualify(h.group, name),
	}
}

// appendAttr appends key=value for attr, flattening groups into dotted keys.
func appendAttr(parts []string, group string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return parts
	}
	if attr.Value.Kind() == slog.KindGroup {
		prefix := qualify(group, attr.Key)
		for _, inner := range attr.Value.Group() {
			parts = appendAttr(parts, prefix, inner)
		}
		return parts
	}
	return append(parts, qualify(group, attr.Key)+"="+attr.Value.String())
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	if key == "" {
		return group
	}
	return group + "." + key
}
