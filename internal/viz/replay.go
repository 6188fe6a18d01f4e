package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/jointlock/internal/recorder"
)

const (
	canvasWidth  = 60
	canvasHeight = 30
	graphPoints  = 120
)

type tickMsg time.Time

type Options struct {
	Title string
	FPS   int

	// Joint is the coordinate plotted in the side panel.
	Joint int

	Theme string
}

// Replay loops over recorded snapshots, drawing the leg and a side panel
// with the lock status and a history graph of the locked joint's angle.
type Replay struct {
	snaps    []recorder.Snapshot
	title    string
	fps      int
	joint    int
	theme    int
	styles   styles
	canvas   *Canvas
	viewport Viewport
	playHead int
	step     int
	running  bool
	loops    int
}

func NewReplay(snaps []recorder.Snapshot, opts Options) Replay {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Title == "" {
		opts.Title = "jointlock"
	}
	theme := 0
	for i, t := range Themes {
		if t.Name == opts.Theme {
			theme = i
		}
	}
	reach := 0.0
	for _, s := range snaps {
		for _, p := range s.Pins {
			reach = max(reach, p.Len())
		}
	}
	return Replay{
		snaps:    snaps,
		title:    opts.Title,
		fps:      opts.FPS,
		joint:    opts.Joint,
		theme:    theme,
		styles:   newStyles(Themes[theme]),
		canvas:   NewCanvas(canvasWidth, canvasHeight),
		viewport: Square(reach),
		step:     1,
		running:  true,
	}
}

func (m Replay) PlayHead() int { return m.playHead }
func (m Replay) Loops() int    { return m.loops }
func (m Replay) Running() bool { return m.running }

func (m Replay) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Replay) Init() tea.Cmd { return m.tick() }

func (m Replay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.playHead = 0
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.styles = newStyles(Themes[m.theme])
		case "+", "=":
			m.step = min(m.step*2, 64)
		case "-":
			m.step = max(m.step/2, 1)
		case "]":
			if !m.running {
				m.advance(1)
			}
		case "[":
			if !m.running && m.playHead > 0 {
				m.playHead--
			}
		}
		return m, nil
	case tickMsg:
		if m.running {
			m.advance(m.step)
		}
		return m, m.tick()
	}
	return m, nil
}

// advance moves the play head forward, wrapping to the start at the end.
func (m *Replay) advance(n int) {
	if len(m.snaps) == 0 {
		return
	}
	m.playHead += n
	if m.playHead >= len(m.snaps) {
		m.playHead = 0
		m.loops++
	}
}

// Frame draws snapshot i onto a fresh copy of the canvas.
func (m Replay) Frame(i int) *Canvas {
	c := NewCanvas(m.canvas.Width, m.canvas.Height)
	if i >= 0 && i < len(m.snaps) {
		c.DrawChain(m.viewport, m.snaps[i].Pins)
	}
	return c
}

func (m Replay) View() string {
	if len(m.snaps) == 0 {
		return "no snapshots to replay\n"
	}
	snap := m.snaps[m.playHead]
	st := m.styles

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")

	status := st.free.Render("FREE")
	if snap.Locked {
		status = st.locked.Render("LOCKED")
	}
	if !m.running {
		status += st.value.Render("  paused")
	}
	s.WriteString(status + "\n\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.3fs", snap.Time))
	row("Step", fmt.Sprintf("%d", snap.Step))
	if m.joint < len(snap.Q) {
		row("Angle", fmt.Sprintf("%.4f rad", snap.Q[m.joint]))
		row("Rate", fmt.Sprintf("%.4f rad/s", snap.U[m.joint]))
	}
	if snap.Locked {
		row("Lambda", fmt.Sprintf("%.4g", snap.Multiplier))
	}
	row("Energy", fmt.Sprintf("%.6g", snap.Energy))
	row("Speed", fmt.Sprintf("x%d", m.step))

	if hist := m.history(); len(hist) > 1 {
		chart := asciigraph.Plot(hist,
			asciigraph.Height(6),
			asciigraph.Width(36),
			asciigraph.Caption(fmt.Sprintf("q[%d]", m.joint)))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	fraction := float64(m.playHead+1) / float64(len(m.snaps))
	s.WriteString(ProgressBar(fraction, 36) + "\n")
	s.WriteString(st.help.Render("space pause  [/] step  +/- speed  r restart  t theme  q quit"))

	canvas := st.canvas.Render(m.Frame(m.playHead).String())
	return joinHorizontal(canvas, st.panel.Render(s.String())) + "\n"
}

// history returns the joint angle over the last graphPoints snapshots up to
// the play head.
func (m Replay) history() []float64 {
	start := max(0, m.playHead-graphPoints+1)
	out := make([]float64, 0, m.playHead-start+1)
	for _, s := range m.snaps[start : m.playHead+1] {
		if m.joint < len(s.Q) {
			out = append(out, s.Q[m.joint])
		}
	}
	return out
}

// Run replays snaps until the user quits.
func Run(snaps []recorder.Snapshot, opts Options) error {
	_, err := tea.NewProgram(NewReplay(snaps, opts), tea.WithAltScreen()).Run()
	return err
}
