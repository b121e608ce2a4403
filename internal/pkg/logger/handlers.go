// internal/pkg/logger/handlers.go
package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ContextHandler adds request and cart values found in the context to each
// record. Keys already bound with Logger.With are not repeated.
type ContextHandler struct {
	handler slog.Handler
	keys    []ContextKey
	bound   map[string]struct{}
	grouped bool
}

// NewContextHandler wraps handler, reading keys from the record context
func NewContextHandler(handler slog.Handler, keys []ContextKey) *ContextHandler {
	return &ContextHandler{
		handler: handler,
		keys:    keys,
		bound:   map[string]struct{}{},
	}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := extractContextAttrs(ctx, h.keys)
	if len(attrs) == 0 {
		return h.handler.Handle(ctx, record)
	}

	record = record.Clone()
	for _, a := range attrs {
		if _, dup := h.bound[a.Key]; !dup {
			record.AddAttrs(a)
		}
	}
	return h.handler.Handle(ctx, record)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.bound
	if !h.grouped {
		bound = make(map[string]struct{}, len(h.bound)+len(attrs))
		for k := range h.bound {
			bound[k] = struct{}{}
		}
		for _, a := range attrs {
			bound[a.Key] = struct{}{}
		}
	}
	return &ContextHandler{
		handler: h.handler.WithAttrs(attrs),
		keys:    h.keys,
		bound:   bound,
		grouped: h.grouped,
	}
}

// WithGroup nests later attributes. Keys bound inside a group do not shadow
// context values.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{
		handler: h.handler.WithGroup(name),
		keys:    h.keys,
		bound:   h.bound,
		grouped: true,
	}
}

const redacted = "***REDACTED***"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// SanitizationHandler masks credentials and shopper personal data. Attributes
// are matched by key, including keys inside groups such as a logged shipping
// address, and string values are scrubbed of tokens, emails and card numbers.
type SanitizationHandler struct {
	handler    slog.Handler
	redactions []redaction
	sensitive  []string
}

// NewSanitizationHandler creates a handler that sanitizes sensitive data
func NewSanitizationHandler(handler slog.Handler) *SanitizationHandler {
	return &SanitizationHandler{
		handler: handler,
		redactions: []redaction{
			{regexp.MustCompile(`(?i)\bbearer\s+[^\s"']+`), "Bearer " + redacted},
			{regexp.MustCompile(`(?i)\b(password|secret|token|api[-_]?key)\s*[:=]\s*["']?[^"'\s]+`), "$1=" + redacted},
			{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), redacted},
			{regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), redacted},
		},
		sensitive: []string{
			"password", "secret", "token", "authorization", "cookie", "api_key",
			"card", "phone", "email", "street", "postal_code", "recipient",
		},
	}
}

func (h *SanitizationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *SanitizationHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.scrub(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clean)
}

func (h *SanitizationHandler) sanitizeAttr(attr slog.Attr) slog.Attr {
	if h.isSensitive(attr.Key) {
		return slog.String(attr.Key, redacted)
	}

	attr.Value = attr.Value.Resolve()
	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, a := range group {
			clean[i] = h.sanitizeAttr(a)
		}
		attr.Value = slog.GroupValue(clean...)
	case slog.KindString:
		attr.Value = slog.StringValue(h.scrub(attr.Value.String()))
	}
	return attr
}

func (h *SanitizationHandler) isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range h.sensitive {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func (h *SanitizationHandler) scrub(s string) string {
	for _, r := range h.redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

func (h *SanitizationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.sanitizeAttr(a)
	}
	return &SanitizationHandler{
		handler:    h.handler.WithAttrs(clean),
		redactions: h.redactions,
		sensitive:  h.sensitive,
	}
}

func (h *SanitizationHandler) WithGroup(name string) slog.Handler {
	return &SanitizationHandler{
		handler:    h.handler.WithGroup(name),
		redactions: h.redactions,
		sensitive:  h.sensitive,
	}
}

// PrettyTextHandler writes colored single-line records for local development.
// Request and cart ids are printed right after the message.
type PrettyTextHandler struct {
	level   slog.Leveler
	mu      *sync.Mutex
	w       io.Writer
	prefix  string
	preset  string
	leading string
}

// NewPrettyTextHandler creates a pretty text handler
func NewPrettyTextHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyTextHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyTextHandler{level: level, mu: &sync.Mutex{}, w: w}
}

func (h *PrettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	var lead, rest bytes.Buffer
	lead.WriteString(h.leading)
	rest.WriteString(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		// ids from the context are never nested
		if isCorrelationKey(a.Key) {
			writeAttr(&lead, "", a)
		} else {
			writeAttr(&rest, h.prefix, a)
		}
		return true
	})

	level := r.Level.String()
	line := fmt.Sprintf("%s%s %-5s%s %s%s%s\n",
		levelColor(r.Level), r.Time.Format("15:04:05.000"), level, colorReset,
		r.Message, lead.String(), rest.String())

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *PrettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var lead, rest bytes.Buffer
	for _, a := range attrs {
		if h.prefix == "" && isCorrelationKey(a.Key) {
			writeAttr(&lead, "", a)
		} else {
			writeAttr(&rest, h.prefix, a)
		}
	}
	next.leading += lead.String()
	next.preset += rest.String()
	return &next
}

func (h *PrettyTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix += name + "."
	return &next
}

const (
	colorReset = "\033[0m"
	colorKey   = "\033[36m"
	colorID    = "\033[35m"
)

func isCorrelationKey(key string) bool {
	return key == string(ContextKeyRequestID) || key == string(ContextKeyCartID)
}

func writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(buf, p, ga)
		}
		return
	}

	color := colorKey
	if prefix == "" && isCorrelationKey(a.Key) {
		color = colorID
	}
	val := a.Value.String()
	if a.Value.Kind() == slog.KindDuration {
		val = a.Value.Duration().Round(time.Microsecond).String()
	}
	fmt.Fprintf(buf, " %s%s%s=%s", color, prefix+a.Key, colorReset, val)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[34m"
	default:
		return "\033[37m"
	}
}
