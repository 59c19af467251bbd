// Package ui is the terminal status view shown while a session plays.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/ingex/internal/codec"
	"github.com/zsiec/ingex/internal/matrix"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/registry"
)

// Snapshot is everything one redraw shows.
type Snapshot struct {
	Session *registry.Session
	Entries []matrix.Entry
	Pools   []codec.PoolStats
}

// Provider returns the current state. It is called from the UI goroutine.
type Provider func() Snapshot

type tickMsg time.Time

// Model is the bubbletea model for the dashboard.
type Model struct {
	provider Provider
	interval time.Duration
	onQuit   func()

	snap      Snapshot
	started   time.Time
	lastTick  time.Time
	lastFrame int64
	fps       float64
	width     int
	quitting  bool
}

// NewModel builds a dashboard refreshed every interval. onQuit runs when the
// user quits and may be nil.
func NewModel(provider Provider, interval time.Duration, onQuit func()) *Model {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Model{
		provider: provider,
		interval: interval,
		onQuit:   onQuit,
		started:  time.Now(),
	}
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickEvery(m.interval), func() tea.Msg { return tickMsg(time.Now()) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		case "r":
			m.refresh(time.Now())
		}
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		m.refresh(time.Time(msg))
		return m, tickEvery(m.interval)
	}
	return m, nil
}

// refresh pulls a snapshot and updates the completed-frame rate.
func (m *Model) refresh(now time.Time) {
	m.snap = m.provider()
	if m.snap.Session == nil {
		return
	}
	done := m.snap.Session.Stats.FramesCompleted
	if !m.lastTick.IsZero() {
		if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
			m.fps = float64(done-m.lastFrame) / dt
		}
	}
	m.lastTick = now
	m.lastFrame = done
}

func (m *Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}
	if m.snap.Session == nil {
		return MutedStyle.Render("Waiting for session...") + "\n"
	}

	sections := []string{
		m.renderHeader(),
		m.renderTotals(),
		m.renderConnections(),
	}
	if len(m.snap.Pools) > 0 {
		sections = append(sections, m.renderPools())
	}
	sections = append(sections, MutedStyle.Render("q quit • r refresh"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) renderHeader() string {
	s := m.snap.Session
	title := fmt.Sprintf("INGEX PLAYER  %s  %s  up %s",
		s.ID, StatusBadge(string(s.Status)), time.Since(m.started).Truncate(time.Second))
	if s.Error != "" {
		title += "\n" + ErrorStyle.Render(s.Error)
	}
	return HeaderStyle.Render(title)
}

func (m *Model) renderTotals() string {
	st := m.snap.Session.Stats
	line := fmt.Sprintf("read %d  completed %s  cancelled %s  decode errors %s  violations %s  %.1f fps",
		st.FramesRead,
		SuccessStyle.Render(fmt.Sprint(st.FramesCompleted)),
		CountStyle(uint64(st.FramesCancelled), true).Render(fmt.Sprint(st.FramesCancelled)),
		CountStyle(uint64(st.DecodeErrors), false).Render(fmt.Sprint(st.DecodeErrors)),
		CountStyle(uint64(st.Violations), false).Render(fmt.Sprint(st.Violations)),
		m.fps)
	return PanelStyle.Render(PanelTitleStyle.Render("Frames") + "\n" + line)
}

func describe(info media.StreamInfo) string {
	if info.Type == media.StreamTypeSound {
		return fmt.Sprintf("%s %dch %dbit", info.Format, info.Channels, info.BitsPerSample)
	}
	return fmt.Sprintf("%s %dx%d", info.Format, info.Width, info.Height)
}

func (m *Model) renderConnections() string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render(fmt.Sprintf("Connections (%d)", len(m.snap.Entries))))
	b.WriteString("\n")
	b.WriteString(ColumnStyle.Render(fmt.Sprintf("%-4s %-4s %-12s %-24s %-24s %-7s %8s %6s %6s",
		"SRC", "SINK", "FAMILY", "SOURCE", "OUTPUT", "WORKER", "FRAMES", "ERR", "VIOL")))
	for _, e := range m.snap.Entries {
		c := e.Connection
		worker := "-"
		if c.Worker {
			worker = "yes"
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-4d %-4d %-12s %-24s %-24s %-7s %8d ",
			c.SourceStream, c.SinkStream, c.Family, describe(c.Source), describe(c.Output), worker, e.Stats.Frames))
		b.WriteString(CountStyle(e.Stats.Errors, false).Render(fmt.Sprintf("%6d", e.Stats.Errors)))
		b.WriteString(" ")
		b.WriteString(CountStyle(e.Stats.Violations, false).Render(fmt.Sprintf("%6d", e.Stats.Violations)))
	}
	return PanelStyle.Render(b.String())
}

func (m *Model) renderPools() string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("Decoder pools"))
	for _, p := range m.snap.Pools {
		usage := fmt.Sprintf("%d/%d", p.InUse, p.Limit)
		style := MutedStyle
		if p.Limit > 0 && p.InUse >= p.Limit {
			style = WarningStyle
		}
		b.WriteString(fmt.Sprintf("\n%-12s in use %s  pooled %d", p.Name, style.Render(usage), p.Entries))
	}
	return PanelStyle.Render(b.String())
}

// Run shows the dashboard until the user quits or ctx is done.
func Run(ctx context.Context, provider Provider, onQuit func()) error {
	p := tea.NewProgram(NewModel(provider, 0, onQuit), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
