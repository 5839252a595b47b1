package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clarabennett2626/logtrail/internal/filter"
	"github.com/clarabennett2626/logtrail/internal/parser"
	"github.com/clarabennett2626/logtrail/internal/source"
)

// DefaultMaxLines caps how many records the viewer keeps.
const DefaultMaxLines = 50_000

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#333333")).
			Padding(0, 1)

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Background(lipgloss.Color("#333333")).
			Bold(true).
			Padding(0, 1)
)

// BatchMsg carries records delivered by the source.
type BatchMsg struct {
	Kind    source.BatchKind
	Records []parser.Record
}

// StatusMsg carries an engine state change.
type StatusMsg struct {
	State source.State
	Text  string
}

// Model is the main TUI model.
type Model struct {
	width  int
	height int
	ready  bool

	keys     keyMap
	renderer *Renderer

	records  []parser.Record
	maxLines int

	// Virtual scrolling state.
	offset     int  // index of the first visible record
	autoScroll bool // stick to bottom when new records arrive

	sourceName string
	status     string
	reopen     func()
}

// Option configures a Model.
type Option func(*Model)

// WithRenderer sets the renderer used for visible records.
func WithRenderer(r *Renderer) Option {
	return func(m *Model) { m.renderer = r }
}

// WithMaxLines caps the record buffer; the oldest records are dropped.
func WithMaxLines(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxLines = n
		}
	}
}

// WithSourceName sets the name shown in the status bar.
func WithSourceName(name string) Option {
	return func(m *Model) { m.sourceName = name }
}

// WithReopen sets the action bound to the reopen key.
func WithReopen(fn func()) Option {
	return func(m *Model) { m.reopen = fn }
}

// NewModel creates a TUI model.
func NewModel(opts ...Option) Model {
	m := Model{
		keys:       DefaultKeyMap(),
		maxLines:   DefaultMaxLines,
		autoScroll: true,
		status:     "Initializing…",
	}
	for _, o := range opts {
		o(&m)
	}
	if m.renderer == nil {
		m.renderer = NewRenderer(DefaultConfig())
	}
	return m
}

// NewModelWithSource creates a model for src. Sources that can re-open
// their file get the reopen key wired up.
func NewModelWithSource(src source.Source, sourceName string, opts ...Option) Model {
	base := []Option{WithSourceName(sourceName)}
	if r, ok := src.(interface{ Reopen() }); ok {
		base = append(base, WithReopen(r.Reopen))
	}
	return NewModel(append(base, opts...)...)
}

// viewHeight returns the number of lines available for records
// (total height minus title bar and status bar).
func (m Model) viewHeight() int {
	// 1 line title + 1 blank + 1 status bar = 3 overhead lines
	h := m.height - 3
	if h < 1 {
		return 1
	}
	return h
}

func (m Model) maxOffset() int {
	return max(len(m.records)-m.viewHeight(), 0)
}

func (m *Model) clampOffset() {
	m.offset = min(max(m.offset, 0), m.maxOffset())
}

func (m Model) isAtBottom() bool {
	return m.offset >= m.maxOffset()
}

// scroll moves the viewport by delta records. Reaching the bottom resumes
// auto-follow.
func (m *Model) scroll(delta int) {
	m.autoScroll = false
	m.offset += delta
	m.clampOffset()
	if delta > 0 && m.isAtBottom() {
		m.autoScroll = true
	}
}

// appendRecords adds records and trims the buffer to maxLines.
func (m *Model) appendRecords(recs []parser.Record) {
	m.records = append(m.records, recs...)
	if drop := len(m.records) - m.maxLines; drop > 0 {
		m.records = append([]parser.Record(nil), m.records[drop:]...)
		m.offset -= drop
	}
	if m.autoScroll {
		m.offset = m.maxOffset()
	}
	m.clampOffset()
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Down):
			m.scroll(1)
		case key.Matches(msg, m.keys.Up):
			m.scroll(-1)
		case key.Matches(msg, m.keys.Top):
			m.autoScroll = false
			m.offset = 0
		case key.Matches(msg, m.keys.Bottom):
			m.offset = m.maxOffset()
			m.autoScroll = true
		case key.Matches(msg, m.keys.PageDown):
			m.scroll(m.viewHeight())
		case key.Matches(msg, m.keys.PageUp):
			m.scroll(-m.viewHeight())
		case key.Matches(msg, m.keys.HalfPageDown):
			m.scroll(m.viewHeight() / 2)
		case key.Matches(msg, m.keys.HalfPageUp):
			m.scroll(-m.viewHeight() / 2)
		case key.Matches(msg, m.keys.ToggleFields):
			m.renderer.config.ShowAllFields = !m.renderer.config.ShowAllFields
		case key.Matches(msg, m.keys.Reopen):
			if m.reopen != nil {
				m.reopen()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		if msg.Width > 0 {
			m.renderer.config.TerminalWidth = msg.Width
		}
		if m.autoScroll {
			m.offset = m.maxOffset()
		}
		m.clampOffset()

	case BatchMsg:
		m.appendRecords(msg.Records)

	case StatusMsg:
		m.status = msg.Text
	}
	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("logtrail"))
	b.WriteByte('\n')

	// Only the visible slice is rendered.
	vh := m.viewHeight()
	if len(m.records) == 0 {
		for i := 0; i < vh; i++ {
			if i == vh/2-1 {
				b.WriteString("  No log entries yet.")
			} else if i == vh/2 {
				b.WriteString("  Waiting for input...")
			}
			b.WriteByte('\n')
		}
	} else {
		start := max(m.offset, 0)
		end := min(start+vh, len(m.records))
		for i := start; i < end; i++ {
			b.WriteString(m.renderer.RenderRecord(m.records[i]))
			b.WriteByte('\n')
		}
		for i := end - start; i < vh; i++ {
			b.WriteByte('\n')
		}
	}

	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) statusBar() string {
	total := len(m.records)
	scrollInfo := "bottom"
	if total > 0 && !m.isAtBottom() {
		pct := 0
		if m.maxOffset() > 0 {
			pct = m.offset * 100 / m.maxOffset()
		}
		scrollInfo = fmt.Sprintf("%d%%", pct)
	}

	src := m.sourceName
	if src == "" {
		src = "stdin"
	}

	left := statusKeyStyle.Render("Lines:") + statusBarStyle.Render(fmt.Sprintf(" %d ", total))
	srcInfo := statusKeyStyle.Render("Src:") + statusBarStyle.Render(fmt.Sprintf(" %s ", src))
	state := statusBarStyle.Render(m.status)
	right := statusKeyStyle.Render("Pos:") + statusBarStyle.Render(fmt.Sprintf(" %s ", scrollInfo))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(srcInfo) - lipgloss.Width(state) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Render(left + srcInfo + state + strings.Repeat(" ", gap) + right)
}

// Sender delivers messages to a running program; *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Listen forwards src's batches and status updates to the program from
// background goroutines, so the engine never touches the UI directly.
// Records failing f are dropped before they reach the model. The returned
// channel is closed once both source channels are drained.
func Listen(src source.Source, f *filter.Filter, prog Sender) <-chan struct{} {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for b := range src.Batches() {
			recs := f.Apply(b.Records)
			if len(recs) == 0 {
				continue
			}
			prog.Send(BatchMsg{Kind: b.Kind, Records: recs})
		}
	}()
	go func() {
		defer wg.Done()
		for st := range src.Status() {
			prog.Send(StatusMsg{State: st.State, Text: st.Text})
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
