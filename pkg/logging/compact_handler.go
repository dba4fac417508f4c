package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// levelTags are fixed width so messages line up
var levelTags = map[slog.Level]string{
	LevelTrace:      "[TRACE] ",
	slog.LevelDebug: "[DEBUG] ",
	slog.LevelInfo:  "[INFO]  ",
	slog.LevelWarn:  "[WARN]  ",
	slog.LevelError: "[ERROR] ",
}

// shortKeys are attributes rendered under a shorter name with a shortened value
var shortKeys = map[string]string{
	"requestID": "req",
	"runID":     "run",
}

// idKeys hold generated node or edge ids ("n-<uuid>", "e-<uuid>")
var idKeys = map[string]bool{
	"node":   true,
	"edge":   true,
	"entry":  true,
	"source": true,
	"target": true,
}

const shortIDLen = 8

// CompactHandler formats logs in a compact, readable format for console output
// Format: [LEVEL] HH:MM:SS message | key=value key=value
type CompactHandler struct {
	opts  slog.HandlerOptions
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr // accumulated attributes from WithAttrs
	group string      // current group name from WithGroup
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  w,
	}
}

func (h *CompactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CompactHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)

	tag, ok := levelTags[r.Level]
	if !ok {
		tag = fmt.Sprintf("[%-5s] ", r.Level.String())
	}
	buf = append(buf, tag...)
	buf = append(buf, r.Time.Format(time.TimeOnly)...)
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	// accumulated attributes first, then the record's own
	sep := " |"
	appendOne := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		buf = append(buf, sep...)
		buf = append(buf, ' ')
		sep = ""
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		buf = appendAttr(buf, a)
	}
	for _, a := range h.attrs {
		appendOne(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendOne(a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value.Resolve()

	if short, ok := shortKeys[a.Key]; ok && v.Kind() == slog.KindString {
		buf = append(buf, short...)
		buf = append(buf, '=')
		return append(buf, truncate(v.String(), shortIDLen)...)
	}
	if idKeys[a.Key] && v.Kind() == slog.KindString {
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		return append(buf, shortID(v.String())...)
	}

	// *Ms keys are milliseconds
	if name, ok := strings.CutSuffix(a.Key, "Ms"); ok && name != "" {
		switch v.Kind() {
		case slog.KindFloat64:
			return fmt.Appendf(buf, "%s=%gms", name, v.Float64())
		case slog.KindInt64:
			return fmt.Appendf(buf, "%s=%dms", name, v.Int64())
		}
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	switch v.Kind() {
	case slog.KindString:
		return appendString(buf, v.String())
	case slog.KindFloat64:
		return fmt.Appendf(buf, "%g", v.Float64())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return append(buf, v.Time().Format(time.RFC3339)...)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return fmt.Appendf(buf, "%q", x.Error())
		case []string:
			return fmt.Appendf(buf, "[%s]", strings.Join(x, " "))
		}
	}
	return append(buf, v.String()...)
}

func appendString(buf []byte, s string) []byte {
	if strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Appendf(buf, "%q", s)
	}
	return append(buf, s...)
}

// shortID keeps the prefix of a generated id and the first characters of its uuid.
// Hand-written ids such as "n5" are left alone.
func shortID(id string) string {
	if len(id) > 2 && id[1] == '-' {
		return id[:2] + truncate(id[2:], shortIDLen)
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &CompactHandler{opts: h.opts, mu: h.mu, out: h.out, attrs: merged, group: h.group}
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if h.group != "" {
		name = h.group + "." + name
	}
	return &CompactHandler{opts: h.opts, mu: h.mu, out: h.out, attrs: h.attrs, group: name}
}
