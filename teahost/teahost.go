// Package teahost runs a dualview Renderer inside a Bubble Tea program.
//
// Key messages are dispatched to the renderer's input subscribers, window
// size messages resize its root area and a frame tick drives Frame. View
// returns the last frame encoded for the configured color profile.
package teahost

import (
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kungfusheep/dualview"
	"github.com/kungfusheep/dualview/component"
	"github.com/kungfusheep/dualview/term"
)

var statusStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444")).
	Bold(true)

type frameMsg struct{}

// Option configures a Model.
type Option func(*Model)

// WithStatus reserves the bottom row for frame timings.
func WithStatus() Option {
	return func(m *Model) { m.status = true }
}

// WithQuitKeys replaces the keys that end the program. Defaults to ctrl+c.
func WithQuitKeys(keys ...string) Option {
	return func(m *Model) { m.quit = keys }
}

// Model is the Bubble Tea model hosting a renderer.
type Model struct {
	r      *dualview.Renderer
	enc    *term.Encoder
	period time.Duration
	quit   []string
	status bool
	err    error
}

// New returns a model driving r. The renderer should have no sink of its
// own; Bubble Tea owns the terminal.
func New(r *dualview.Renderer, opts ...Option) Model {
	cfg := r.Config()
	rate := cfg.FrameRate
	if rate <= 0 {
		rate = 20
	}
	m := Model{
		r:      r,
		enc:    term.NewEncoder(cfg.Profile(os.Stdout)),
		period: time.Second / time.Duration(rate),
		quit:   []string{"ctrl+c"},
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Err returns the error that stopped the program, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return func() tea.Msg { return frameMsg{} }
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.period, func(time.Time) tea.Msg { return frameMsg{} })
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		for _, q := range m.quit {
			if key == q {
				return m, tea.Quit
			}
		}
		m.r.Dispatch(component.Key(key))
		return m, nil

	case tea.WindowSizeMsg:
		h := msg.Height
		if m.status {
			h--
		}
		m.r.Resize(msg.Width, max(0, h))
		return m, nil

	case frameMsg:
		if err := m.r.Frame(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render(m.err.Error()) + "\n"
	}
	var b strings.Builder
	if g := m.r.Last(); g != nil {
		b.WriteString(strings.Join(m.enc.Lines(g), "\n"))
	}
	if m.status {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.r.Timing().String()))
	}
	return b.String()
}
