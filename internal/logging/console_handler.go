package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// prettyHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO pipeline [na-2018-31/ocr]: stage started source="a b"
//
// The component, document id and stage read from the record or the bound
// attrs form the line subject instead of trailing pairs.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	bound     []slog.Attr
	prefix    string
	addSource bool
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}
	line := consoleLine{header: map[string]string{}}
	for _, attr := range h.bound {
		line.add("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		line.add(h.prefix, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s ", ts.UTC().Format(time.RFC3339), record.Level)
	if component := line.header[FieldComponent]; component != "" {
		b.WriteString(component)
		if subject := line.subject(); subject != "" {
			b.WriteString(" [" + subject + "]")
		}
		b.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, pair := range line.pairs {
		b.WriteString(" " + pair)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = make([]slog.Attr, 0, len(h.bound)+len(attrs))
	next.bound = append(next.bound, h.bound...)
	for _, attr := range attrs {
		if h.prefix != "" {
			attr.Key = h.prefix + attr.Key
		}
		next.bound = append(next.bound, attr)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// consoleLine collects the subject fields and the rendered key=value pairs.
type consoleLine struct {
	header map[string]string
	pairs  []string
}

func (l *consoleLine) add(prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Key == "" && attr.Value.Kind() != slog.KindGroup {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			l.add(prefix, member)
		}
		return
	}
	key := prefix + attr.Key
	switch key {
	case FieldComponent, FieldDocumentID, FieldStage:
		if l.header[key] == "" {
			l.header[key] = strings.TrimSpace(plainValue(attr.Value))
		}
		return
	}
	l.pairs = append(l.pairs, key+"="+quoteIfNeeded(plainValue(attr.Value)))
}

func (l *consoleLine) subject() string {
	parts := make([]string, 0, 2)
	for _, key := range []string{FieldDocumentID, FieldStage} {
		if v := l.header[key]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "/")
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
