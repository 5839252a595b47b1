// Package tui is logtrail's terminal viewer: a bubbletea model fed by a
// source's batch and status channels, and the lipgloss renderer that turns
// records into display lines.
package tui

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/clarabennett2626/logtrail/internal/parser"
)

// TimestampFormat controls how timestamps are displayed.
type TimestampFormat int

const (
	// TimestampRelative shows "2m ago", "3h ago", etc.
	TimestampRelative TimestampFormat = iota
	// TimestampISO shows ISO 8601 format.
	TimestampISO
	// TimestampLocal shows wall-clock time only.
	TimestampLocal
)

// ParseTimestampFormat maps "relative", "iso" or "local" to a format.
func ParseTimestampFormat(s string) (TimestampFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relative":
		return TimestampRelative, nil
	case "iso":
		return TimestampISO, nil
	case "local", "":
		return TimestampLocal, nil
	}
	return 0, fmt.Errorf("unknown timestamp format %q", s)
}

// Theme represents terminal color theme.
type Theme int

const (
	ThemeDark Theme = iota
	ThemeLight
)

// ParseTheme maps "dark" or "light" to a theme.
func ParseTheme(s string) (Theme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dark", "":
		return ThemeDark, nil
	case "light":
		return ThemeLight, nil
	}
	return 0, fmt.Errorf("unknown theme %q", s)
}

// ANSIMode controls how ANSI escape codes in source logs are handled.
type ANSIMode int

const (
	ANSIStrip ANSIMode = iota
	ANSIPassthrough
)

// WrapMode controls how long lines are handled.
type WrapMode int

const (
	WrapTruncate WrapMode = iota
	WrapWrap
)

// RenderConfig holds rendering configuration.
type RenderConfig struct {
	TimestampFormat TimestampFormat
	Theme           Theme
	ANSIMode        ANSIMode
	WrapMode        WrapMode
	TerminalWidth   int
	FieldOrder      []string         // listed fields first, the rest alphabetically
	ShowAllFields   bool             // when false, extra fields are collapsed
	Now             func() time.Time // for testing; defaults to time.Now
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() RenderConfig {
	return RenderConfig{
		TimestampFormat: TimestampLocal,
		Theme:           ThemeDark,
		ANSIMode:        ANSIStrip,
		WrapMode:        WrapTruncate,
		TerminalWidth:   120,
		Now:             time.Now,
	}
}

// palette lists the 256-color codes for one theme.
type palette struct {
	debug, info, warn, err, fatal            string
	timestamp, tag, message, fieldKey, field string
	separator                                string
}

var palettes = map[Theme]palette{
	ThemeDark: {
		debug: "245", info: "39", warn: "220", err: "196", fatal: "196",
		timestamp: "243", tag: "141", message: "255", fieldKey: "117", field: "252",
		separator: "240",
	},
	ThemeLight: {
		debug: "244", info: "27", warn: "172", err: "160", fatal: "160",
		timestamp: "242", tag: "91", message: "0", fieldKey: "25", field: "237",
		separator: "249",
	},
}

type styles struct {
	levels    map[string]lipgloss.Style
	timestamp lipgloss.Style
	tag       lipgloss.Style
	message   lipgloss.Style
	fieldKey  lipgloss.Style
	fieldVal  lipgloss.Style
	separator lipgloss.Style
}

func newStyles(t Theme) styles {
	p, ok := palettes[t]
	if !ok {
		p = palettes[ThemeDark]
	}
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return styles{
		levels: map[string]lipgloss.Style{
			"debug": fg(p.debug),
			"info":  fg(p.info),
			"warn":  fg(p.warn),
			"error": fg(p.err),
			"fatal": fg(p.fatal).Bold(true),
		},
		timestamp: fg(p.timestamp),
		tag:       fg(p.tag),
		message:   fg(p.message),
		fieldKey:  fg(p.fieldKey),
		fieldVal:  fg(p.field),
		separator: fg(p.separator),
	}
}

// Renderer renders records as terminal lines.
type Renderer struct {
	config RenderConfig
	styles styles
}

// NewRenderer creates a new Renderer with the given config.
func NewRenderer(config RenderConfig) *Renderer {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.TerminalWidth <= 0 {
		config.TerminalWidth = 120
	}
	return &Renderer{config: config, styles: newStyles(config.Theme)}
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes ANSI escape codes from a string.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// segment is one column of a rendered line before styling.
type segment struct {
	text  string
	style lipgloss.Style
}

// segments lays out level, timestamp, tags, message and fields.
func (r *Renderer) segments(rec parser.Record) []segment {
	var out []segment

	if rec.Level != "" {
		norm := normalizeLevel(rec.Level)
		style, ok := r.styles.levels[norm]
		if !ok {
			style = r.styles.message
		}
		out = append(out, segment{fmt.Sprintf("%-5s", strings.ToUpper(norm)), style})
	}
	if !rec.Timestamp.IsZero() {
		out = append(out, segment{r.formatTimestamp(rec.Timestamp), r.styles.timestamp})
	}
	if tags := formatTags(rec); tags != "" {
		out = append(out, segment{tags, r.styles.tag})
	}

	msg := rec.Body()
	if r.config.ANSIMode == ANSIStrip {
		msg = StripANSI(msg)
	}
	if msg != "" {
		out = append(out, segment{msg, r.styles.message})
	}
	return out
}

// formatTags renders process, thread and logger as "api[worker-3] http.client".
func formatTags(rec parser.Record) string {
	var b strings.Builder
	b.WriteString(rec.Process)
	if rec.Thread != "" {
		b.WriteString("[" + rec.Thread + "]")
	}
	if rec.Logger != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(rec.Logger)
	}
	return b.String()
}

// RenderRecord renders a record as a styled line.
func (r *Renderer) RenderRecord(rec parser.Record) string {
	segs := r.segments(rec)
	parts := make([]string, 0, len(segs)+1)
	for _, s := range segs {
		parts = append(parts, s.style.Render(s.text))
	}
	if r.config.ShowAllFields && len(rec.Fields) > 0 {
		var kv []string
		for _, k := range r.orderedFieldKeys(rec.Fields) {
			kv = append(kv, r.styles.fieldKey.Render(k)+r.styles.separator.Render("=")+r.styles.fieldVal.Render(rec.Fields[k]))
		}
		parts = append(parts, strings.Join(kv, " "))
	}
	return r.applyWrap(strings.Join(parts, r.styles.separator.Render(" │ ")))
}

// RenderPlain renders without styling, for headless output and tests.
func (r *Renderer) RenderPlain(rec parser.Record) string {
	segs := r.segments(rec)
	parts := make([]string, 0, len(segs)+1)
	for _, s := range segs {
		parts = append(parts, s.text)
	}
	if r.config.ShowAllFields && len(rec.Fields) > 0 {
		var kv []string
		for _, k := range r.orderedFieldKeys(rec.Fields) {
			kv = append(kv, k+"="+rec.Fields[k])
		}
		parts = append(parts, strings.Join(kv, " "))
	}
	return strings.Join(parts, " │ ")
}

// CollapsedFieldCount returns how many extra fields would be hidden.
func CollapsedFieldCount(rec parser.Record) int {
	return len(rec.Fields)
}

func normalizeLevel(level string) string {
	l := strings.ToLower(strings.TrimSpace(level))
	switch l {
	case "warning":
		return "warn"
	case "critical", "panic":
		return "fatal"
	case "err":
		return "error"
	default:
		return l
	}
}

func (r *Renderer) formatTimestamp(t time.Time) string {
	switch r.config.TimestampFormat {
	case TimestampRelative:
		return relativeTime(t, r.config.Now())
	case TimestampLocal:
		return t.Format("15:04:05")
	default:
		return t.Format(time.RFC3339)
	}
}

func relativeTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return formatDuration(-d) + " from now"
	}
	if d < time.Second {
		return "just now"
	}
	return formatDuration(d) + " ago"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func (r *Renderer) orderedFieldKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(r.config.FieldOrder))
	for _, k := range r.config.FieldOrder {
		if _, ok := fields[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func (r *Renderer) applyWrap(line string) string {
	if r.config.WrapMode != WrapTruncate || r.config.TerminalWidth <= 0 {
		return line
	}
	if lipgloss.Width(line) <= r.config.TerminalWidth {
		return line
	}
	return truncateToWidth(line, r.config.TerminalWidth-1) + "…"
}

// truncateToWidth cuts s after width visible runes, keeping escape
// sequences intact.
func truncateToWidth(s string, width int) string {
	var b strings.Builder
	visible := 0
	inEscape := false
	for _, c := range s {
		switch {
		case c == '\x1b':
			inEscape = true
		case inEscape:
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
				inEscape = false
			}
		default:
			if visible >= width {
				return b.String()
			}
			visible++
		}
		b.WriteRune(c)
	}
	return b.String()
}
