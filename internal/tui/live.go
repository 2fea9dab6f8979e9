package tui

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mlplay/internal/engine"
	"github.com/san-kum/mlplay/internal/playground"
	"github.com/san-kum/mlplay/internal/render"
)

const (
	canvasWidth     = 60
	canvasHeight    = 20
	historyCapacity = 300
	maxValueRows    = 10
)

type TickMsg time.Time

type Options struct {
	// GIFPath is where a finished recording is written.
	GIFPath string
	Theme   string
	// Overlays starts with these overlays switched on.
	Overlays []string
}

// Model is the bubbletea live view of one session. The bubbletea event loop
// drives the session: every TickMsg advances it once while it is running.
type Model struct {
	session  playground.Session
	info     playground.Info
	interval time.Duration

	canvas   *render.Canvas
	overlays map[string]bool
	// overlayMode cycles none, each overlay alone, then all of them.
	overlayMode int

	selected int
	history  map[string][]float64

	recorder  *render.Recorder
	recording bool
	gifPath   string

	theme    Theme
	showHelp bool
	message  string
	frame    int
	quitting bool
}

func NewModel(session playground.Session, opts Options) Model {
	info := session.Info()
	interval := session.Config().Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if opts.GIFPath == "" {
		opts.GIFPath = info.Name + ".gif"
	}
	m := Model{
		session:  session,
		info:     info,
		interval: interval,
		canvas:   render.NewCanvas(canvasWidth, canvasHeight),
		overlays: make(map[string]bool),
		history:  make(map[string][]float64),
		recorder: render.NewRecorder(int(interval/(10*time.Millisecond)), 600),
		gifPath:  opts.GIFPath,
		theme:    GetTheme(opts.Theme),
	}
	for _, o := range opts.Overlays {
		m.overlays[o] = true
	}
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		m.frame++
		if m.session.Status() == engine.Running && m.session.Tick() {
			m.observe()
			if m.recording {
				m.draw()
				m.recorder.Capture(m.canvas)
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.recording {
			m.stopRecording()
		}
		return m, tea.Quit
	case " ":
		m.toggleRun()
	case "n":
		if m.session.Status() == engine.Running {
			_ = m.session.Pause()
		}
		if err := m.session.StepOnce(); err != nil {
			m.message = describe(err)
		} else {
			m.observe()
		}
	case "r":
		m.session.Reset()
		m.history = make(map[string][]float64)
		m.message = "reset"
	case "tab", "shift+tab":
		m.cycleParam(msg.String() == "tab")
	case "up", "k":
		m.adjustParam(1)
	case "down", "j":
		m.adjustParam(-1)
	case "v":
		m.cycleOverlay()
	case "g":
		if m.recording {
			m.stopRecording()
		} else {
			m.recorder.Reset()
			m.recording = true
			m.message = "recording"
		}
	case "t":
		m.theme = nextTheme(m.theme)
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) toggleRun() {
	var err error
	switch m.session.Status() {
	case engine.Idle:
		err = m.session.Start()
	case engine.Running:
		err = m.session.Pause()
	case engine.Paused:
		err = m.session.Resume()
	}
	if err != nil {
		m.message = describe(err)
	}
}

func describe(err error) string {
	if errors.Is(err, engine.ErrExhausted) {
		return "run finished, press r to reset"
	}
	return err.Error()
}

func (m *Model) cycleParam(forward bool) {
	n := len(m.info.Params)
	if n == 0 {
		return
	}
	if forward {
		m.selected = (m.selected + 1) % n
	} else {
		m.selected = (m.selected + n - 1) % n
	}
}

func (m *Model) adjustParam(dir float64) {
	if len(m.info.Params) == 0 {
		return
	}
	p := m.info.Params[m.selected]
	cur := m.session.Params()[p.Name]
	step := p.Step
	if step <= 0 {
		step = (p.Max - p.Min) / 20
	}
	if err := m.session.SetParam(p.Name, cur+dir*step); err != nil {
		m.message = err.Error()
	}
}

// cycleOverlay moves through: none, each overlay alone, all.
func (m *Model) cycleOverlay() {
	names := m.info.Overlays
	if len(names) == 0 {
		m.message = "no overlays"
		return
	}
	m.overlayMode = (m.overlayMode + 1) % (len(names) + 2)
	m.overlays = make(map[string]bool)
	switch {
	case m.overlayMode == 0:
		m.message = "overlays off"
	case m.overlayMode <= len(names):
		name := names[m.overlayMode-1]
		m.overlays[name] = true
		m.message = "overlay: " + name
	default:
		for _, name := range names {
			m.overlays[name] = true
		}
		m.message = "overlays: all"
	}
}

func (m *Model) stopRecording() {
	m.recording = false
	n := m.recorder.Len()
	if err := m.recorder.Save(m.gifPath); err != nil {
		m.message = "gif: " + err.Error()
		return
	}
	m.message = fmt.Sprintf("saved %d frames to %s", n, m.gifPath)
}

func (m *Model) observe() {
	for k, v := range m.session.Values() {
		h := append(m.history[k], v)
		if len(h) > historyCapacity {
			h = h[1:]
		}
		m.history[k] = h
	}
}

func (m *Model) options() render.Options {
	opts := render.DefaultOptions()
	for k, v := range m.overlays {
		opts.Overlays[k] = v
	}
	return opts
}

// draw rasterizes the current frame onto the braille canvas.
func (m *Model) draw() {
	m.canvas.Clear()
	render.Rasterize(m.session.Frame(m.options()), m.canvas)
}

func (m Model) status(st styles) string {
	label := ""
	switch m.session.Status() {
	case engine.Running:
		label = st.running.Render(Spinner(m.frame) + " RUNNING")
	case engine.Paused:
		label = st.paused.Render("PAUSED")
	default:
		label = st.paused.Render("IDLE")
	}
	if m.recording {
		label += "  " + st.recording.Render(fmt.Sprintf("● REC %d", m.recorder.Len()))
	}
	return label
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	st := m.theme.styles()
	m.draw()
	canvasView := st.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.info.Title)) + "\n")
	s.WriteString(m.status(st) + "\n\n")

	if degenerate, reason := m.session.Degenerate(); degenerate {
		s.WriteString(st.err.Render("! "+reason) + "\n\n")
	}

	if h := m.history[m.info.Metric]; len(h) > 1 && finiteSeries(h) {
		chart := asciigraph.Plot(h, asciigraph.Height(5), asciigraph.Width(34), asciigraph.Caption(m.info.Metric))
		s.WriteString(st.graph.Render(chart) + "\n\n")
	}

	s.WriteString(st.label.Render("tick") + st.value.Render(fmt.Sprintf("%d", m.session.Ticks())) + "\n")
	values := m.session.Values()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i >= maxValueRows {
			s.WriteString(st.label.Render(fmt.Sprintf("+%d more", len(keys)-i)) + "\n")
			break
		}
		line := st.label.Render(k) + st.value.Render(fmt.Sprintf("%-10.4g", values[k]))
		if h := m.history[k]; len(h) > 1 {
			line += " " + Sparkline(h, 12)
		}
		s.WriteString(line + "\n")
	}

	s.WriteString("\nPARAMETERS\n")
	params := m.session.Params()
	if len(m.info.Params) == 0 {
		s.WriteString(st.label.Render("  (none)") + "\n")
	}
	for i, p := range m.info.Params {
		line := fmt.Sprintf("%-14s %s %.4g", p.Name, Bar(params[p.Name], p.Min, p.Max, 10), params[p.Name])
		if i == m.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.label.Render(line) + "\n")
		}
	}

	if len(m.info.Overlays) > 0 {
		on := make([]string, 0, len(m.overlays))
		for _, name := range m.info.Overlays {
			if m.overlays[name] {
				on = append(on, name)
			}
		}
		s.WriteString("\n" + st.label.Render("overlays") + st.value.Render(orNone(on)) + "\n")
	}

	if m.message != "" {
		s.WriteString("\n" + st.warn.Render(m.message) + "\n")
	}
	s.WriteString(st.help.Render("SP:Run/Pause N:Step R:Reset Q:Quit\nTab:Param ↑↓:Tune V:Overlay G:GIF ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.stats.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Start / pause / resume   ║
║  N        - Single step              ║
║  R        - Reset to defaults        ║
║  Tab      - Next parameter           ║
║  Up/K     - Increase parameter       ║
║  Down/J   - Decrease parameter       ║
║  V        - Cycle overlays           ║
║  G        - Toggle GIF recording     ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

func orNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func finiteSeries(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
