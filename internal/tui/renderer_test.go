package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

var fixedNow = time.Date(2026, 2, 17, 20, 0, 0, 0, time.UTC)

func testRenderer(opts ...func(*RenderConfig)) *Renderer {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return fixedNow }
	cfg.TerminalWidth = 200
	for _, o := range opts {
		o(&cfg)
	}
	return NewRenderer(cfg)
}

func withStamps(f TimestampFormat) func(*RenderConfig) {
	return func(c *RenderConfig) { c.TimestampFormat = f }
}

func withFields(order ...string) func(*RenderConfig) {
	return func(c *RenderConfig) {
		c.ShowAllFields = true
		c.FieldOrder = order
	}
}

func TestRenderPlain(t *testing.T) {
	at := time.Date(2026, 2, 17, 15, 30, 45, 0, time.UTC)
	request := map[string]string{"method": "GET", "path": "/api", "status": "200"}

	tests := []struct {
		name string
		opts []func(*RenderConfig)
		rec  parser.Record
		want string
	}{
		{"level padded", nil, parser.Record{Level: "info", Message: "m"}, "INFO  │ m"},
		{"warning folds to warn", nil, parser.Record{Level: "warning", Message: "m"}, "WARN  │ m"},
		{"panic folds to fatal", nil, parser.Record{Level: "PANIC", Message: "m"}, "FATAL │ m"},
		{"critical folds to fatal", nil, parser.Record{Level: "critical", Message: "m"}, "FATAL │ m"},
		{"err folds to error", nil, parser.Record{Level: "err", Message: "m"}, "ERROR │ m"},
		{"local time", []func(*RenderConfig){withStamps(TimestampLocal)}, parser.Record{Timestamp: at, Message: "m"}, "15:30:45 │ m"},
		{"iso time", []func(*RenderConfig){withStamps(TimestampISO)}, parser.Record{Timestamp: at, Message: "m"}, "2026-02-17T15:30:45Z │ m"},
		{"thread tag", nil, parser.Record{Message: "m", Thread: "worker-3"}, "[worker-3] │ m"},
		{"logger tag", nil, parser.Record{Message: "m", Logger: "http.client"}, "http.client │ m"},
		{"all tags", nil, parser.Record{Message: "m", Process: "api", Thread: "7", Logger: "db"}, "api[7] db │ m"},
		{"raw fallback", nil, parser.Record{Raw: "raw log line"}, "raw log line"},
		{"empty record", nil, parser.Record{}, ""},
		{"fields collapsed", nil, parser.Record{Message: "req", Fields: request}, "req"},
		{"fields sorted", []func(*RenderConfig){withFields()}, parser.Record{Message: "req", Fields: request}, "req │ method=GET path=/api status=200"},
		{"field order first", []func(*RenderConfig){withFields("status", "nope", "status")}, parser.Record{Message: "req", Fields: request}, "req │ status=200 method=GET path=/api"},
		{"ansi stripped", nil, parser.Record{Message: "\x1b[31mred\x1b[0m text"}, "red text"},
		{"ansi kept", []func(*RenderConfig){func(c *RenderConfig) { c.ANSIMode = ANSIPassthrough }}, parser.Record{Message: "\x1b[31mred"}, "\x1b[31mred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testRenderer(tt.opts...).RenderPlain(tt.rec); got != tt.want {
				t.Errorf("RenderPlain() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelativeTimestamps(t *testing.T) {
	r := testRenderer(withStamps(TimestampRelative))
	tests := []struct {
		age  time.Duration
		want string
	}{
		{0, "just now"},
		{30 * time.Second, "30s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{48 * time.Hour, "2d ago"},
		{-5 * time.Minute, "5m from now"},
	}
	for _, tt := range tests {
		got := r.RenderPlain(parser.Record{Timestamp: fixedNow.Add(-tt.age), Message: "m"})
		if want := tt.want + " │ m"; got != want {
			t.Errorf("age %v: got %q, want %q", tt.age, got, want)
		}
	}
}

func TestRenderRecordMatchesPlainText(t *testing.T) {
	rec := parser.Record{
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Level:     "error",
		Message:   "connection refused",
		Thread:    "main",
		Fields:    map[string]string{"host": "db.local", "port": "5432"},
	}
	for _, theme := range []Theme{ThemeDark, ThemeLight} {
		r := testRenderer(withStamps(TimestampISO), withFields(), func(c *RenderConfig) { c.Theme = theme })
		if got, want := StripANSI(r.RenderRecord(rec)), r.RenderPlain(rec); got != want {
			t.Errorf("theme %d: styled text = %q, plain = %q", theme, got, want)
		}
	}
}

func TestLongLines(t *testing.T) {
	msg := "This is a very long message that goes past the terminal width boundary"

	truncated := StripANSI(testRenderer(func(c *RenderConfig) {
		c.TerminalWidth = 30
		c.WrapMode = WrapTruncate
	}).RenderRecord(parser.Record{Message: msg}))
	if n := len([]rune(truncated)); n != 30 {
		t.Errorf("truncated to %d runes, want 30: %q", n, truncated)
	}
	if !strings.HasSuffix(truncated, "…") {
		t.Errorf("truncated output should end with an ellipsis: %q", truncated)
	}

	wrapped := StripANSI(testRenderer(func(c *RenderConfig) {
		c.TerminalWidth = 30
		c.WrapMode = WrapWrap
	}).RenderRecord(parser.Record{Message: msg}))
	if wrapped != msg {
		t.Errorf("wrap mode should leave the line whole, got %q", wrapped)
	}
}

func TestTruncateKeepsMultibyteRunes(t *testing.T) {
	if got := truncateToWidth("héllo wörld", 7); got != "héllo w" {
		t.Errorf("truncateToWidth = %q, want %q", got, "héllo w")
	}
	styled := "\x1b[31mhéllo\x1b[0m wörld"
	if got := StripANSI(truncateToWidth(styled, 3)); got != "hél" {
		t.Errorf("escape sequences should not count toward width, got %q", got)
	}
}

func TestCollapsedFieldCount(t *testing.T) {
	rec := parser.Record{Fields: map[string]string{"a": "1", "b": "2", "c": "3"}}
	if got := CollapsedFieldCount(rec); got != 3 {
		t.Errorf("CollapsedFieldCount() = %d, want 3", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TerminalWidth != 120 || cfg.Theme != ThemeDark || cfg.ANSIMode != ANSIStrip || cfg.ShowAllFields {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	r := NewRenderer(RenderConfig{})
	if r.config.Now == nil || r.config.TerminalWidth != 120 {
		t.Errorf("NewRenderer should fill in Now and width, got %+v", r.config)
	}
}

func TestParseTheme(t *testing.T) {
	tests := map[string]Theme{"Light": ThemeLight, "dark": ThemeDark, "": ThemeDark}
	for in, want := range tests {
		if got, err := ParseTheme(in); err != nil || got != want {
			t.Errorf("ParseTheme(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTheme("neon"); err == nil {
		t.Error("expected error for unknown theme")
	}
}

func TestParseTimestampFormat(t *testing.T) {
	tests := map[string]TimestampFormat{
		"relative": TimestampRelative,
		"ISO":      TimestampISO,
		"local":    TimestampLocal,
		"":         TimestampLocal,
	}
	for in, want := range tests {
		if got, err := ParseTimestampFormat(in); err != nil || got != want {
			t.Errorf("ParseTimestampFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTimestampFormat("unix"); err == nil {
		t.Error("expected error for unknown format")
	}
}
