package testutil

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// Entry is one captured log line. Attrs holds the record's own attributes
// merged with those bound through Logger.With, keyed by their group path.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type journal struct {
	mu      sync.Mutex
	entries []Entry
}

// BufferedSlogHandler records everything logged through it. Handlers derived
// with WithAttrs or WithGroup write to the same journal, so a component that
// tags its logger still shows up in the parent's captures.
type BufferedSlogHandler struct {
	journal *journal
	t       *testing.T
	bound   []slog.Attr
	prefix  string
}

// NewTestLogger returns a logger whose output is captured for assertions and
// echoed to the test log.
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	h := &BufferedSlogHandler{journal: &journal{}, t: t}
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.bound)+r.NumAttrs())
	for _, a := range h.bound {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.prefix, a)
		return true
	})

	h.journal.mu.Lock()
	h.journal.entries = append(h.journal.entries, Entry{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.journal.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = append(append([]slog.Attr(nil), h.bound...), prefixed(h.prefix, attrs)...)
	return &next
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func prefixed(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, g := range v.Group() {
			flatten(dst, prefix+a.Key+".", g)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Entries returns a copy of the captured entries at level.
func (h *BufferedSlogHandler) Entries(level slog.Level) []Entry {
	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()

	var out []Entry
	for _, e := range h.journal.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (h *BufferedSlogHandler) all() []Entry {
	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	return append([]Entry(nil), h.journal.entries...)
}

// ContainsMessage reports whether any entry's message contains substr.
func (h *BufferedSlogHandler) ContainsMessage(substr string) bool {
	for _, e := range h.all() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ContainsAttr reports whether any entry carries key=value.
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	for _, e := range h.all() {
		if v, ok := e.Attrs[key]; ok && reflect.DeepEqual(v, value) {
			return true
		}
	}
	return false
}

// Operation returns the entries tagged operation=name, in logging order.
func (h *BufferedSlogHandler) Operation(name string) []Entry {
	var out []Entry
	for _, e := range h.all() {
		if e.Attrs["operation"] == name {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogContains fails the test unless an entry at level contains message.
func AssertLogContains(t *testing.T, h *BufferedSlogHandler, level slog.Level, message string) {
	t.Helper()

	entries := h.Entries(level)
	for _, e := range entries {
		if strings.Contains(e.Message, message) {
			return
		}
	}
	t.Errorf("no %s log containing %q", level, message)
	for _, e := range entries {
		t.Logf("  %s %v", e.Message, e.Attrs)
	}
}

// AssertLogAttr fails the test unless some entry carries key=value.
func AssertLogAttr(t *testing.T, h *BufferedSlogHandler, key string, value any) {
	t.Helper()

	if h.ContainsAttr(key, value) {
		return
	}
	t.Errorf("no log with %s=%v", key, value)
	for _, e := range h.all() {
		t.Logf("  %s %v", e.Message, e.Attrs)
	}
}

// AssertOperationLogged fails the test unless operation name logged an entry
// at level carrying every attribute in want, typically the symbol it ran for.
func AssertOperationLogged(t *testing.T, h *BufferedSlogHandler, level slog.Level, name string, want map[string]any) {
	t.Helper()

	entries := h.Operation(name)
	for _, e := range entries {
		if e.Level != level {
			continue
		}
		matched := true
		for k, v := range want {
			if !reflect.DeepEqual(e.Attrs[k], v) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	t.Errorf("operation %q logged nothing at %s with %v", name, level, want)
	for _, e := range entries {
		t.Logf("  [%s] %s %v", e.Level, e.Message, e.Attrs)
	}
}
