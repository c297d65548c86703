// Package tui renders the live spectrum and the device picker in the terminal.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"visualizer/internal/pipeline"
	"visualizer/internal/spectrum"
)

// DefaultRefresh is the redraw period used when none is configured (~30fps).
const DefaultRefresh = 33 * time.Millisecond

const (
	// peakDecay lowers the running peak each frame so the scale recovers after
	// a loud passage.
	peakDecay = 0.995
	// minPeak keeps near-silent input from being scaled up to full height.
	minPeak = 1.0

	minColumns = 8
	chromeRows = 4 // title, blank, blank, help
)

var (
	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)
)

// Pipeline is the part of the controller the visualizer drives.
type Pipeline interface {
	Snapshot() *spectrum.Snapshot
	InputMode() pipeline.InputMode
	ViewMode() pipeline.ViewMode
	SetInputMode(pipeline.InputMode) error
	SetViewMode(pipeline.ViewMode)
	FrequencyForBin(i int) float64
}

type keyMap struct {
	Mic      key.Binding
	Loopback key.Binding
	NoInput  key.Binding
	Bars     key.Binding
	Wave     key.Binding
	NextView key.Binding
	Hide     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mic, k.Loopback, k.NoInput, k.NextView, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mic, k.Loopback, k.NoInput},
		{k.Bars, k.Wave, k.NextView, k.Hide},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Mic:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "microphone")),
	Loopback: key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "system audio")),
	NoInput:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "no input")),
	Bars:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bars")),
	Wave:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "wave")),
	NextView: key.NewBinding(key.WithKeys("v", "tab"), key.WithHelp("v", "next view")),
	Hide:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hide")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// inputChangedMsg reports the outcome of a SetInputMode command.
type inputChangedMsg struct {
	mode pipeline.InputMode
	err  error
}

// InputLostMsg tells the visualizer that the active source failed and the
// pipeline fell back to no input. Deliver it with tea.Program.Send.
type InputLostMsg struct {
	Mode pipeline.InputMode
	Err  error
}

// VisualizerModel is the Bubble Tea model for the live spectrum.
type VisualizerModel struct {
	ctrl     Pipeline
	wanted   pipeline.InputMode // shown while a switch is pending
	refresh  time.Duration
	onChange func(pipeline.InputMode, pipeline.ViewMode)

	width, height int
	peak          float64
	pending       bool
	status        string
	err           error
	help          help.Model
}

// NewVisualizerModel returns a model drawing ctrl every refresh. onChange,
// when set, is called after every successful input or view change made from
// the keyboard.
func NewVisualizerModel(ctrl Pipeline, refresh time.Duration, onChange func(pipeline.InputMode, pipeline.ViewMode)) VisualizerModel {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return VisualizerModel{
		ctrl:     ctrl,
		wanted:   ctrl.InputMode(),
		refresh:  refresh,
		onChange: onChange,
		width:    80,
		height:   24,
		peak:     minPeak,
		help:     help.New(),
	}
}

func (m VisualizerModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the redraw ticker.
func (m VisualizerModel) Init() tea.Cmd {
	return m.tick()
}

// setInput switches the device off the UI goroutine.
func (m VisualizerModel) setInput(mode pipeline.InputMode) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return inputChangedMsg{mode: mode, err: ctrl.SetInputMode(mode)}
	}
}

func (m VisualizerModel) setView(mode pipeline.ViewMode) VisualizerModel {
	m.ctrl.SetViewMode(mode)
	m.status = "view: " + mode.String()
	m.notify()
	return m
}

func (m VisualizerModel) notify() {
	if m.onChange != nil {
		m.onChange(m.ctrl.InputMode(), m.ctrl.ViewMode())
	}
}

// Update handles keys, redraw ticks and device transitions.
func (m VisualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		if v := m.ctrl.Snapshot(); v != nil {
			m.peak = nextPeak(m.peak, v.Values)
		}
		return m, m.tick()

	case inputChangedMsg:
		m.pending = false
		m.wanted = m.ctrl.InputMode()
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			break
		}
		m.err = nil
		m.status = "input: " + msg.mode.String()
		m.notify()

	case InputLostMsg:
		// The lost device stays the remembered choice.
		m.wanted = pipeline.InputNone
		m.err = fmt.Errorf("%s input lost: %w", msg.Mode, msg.Err)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, keys.Mic):
			return m.requestInput(pipeline.InputMicrophone)
		case key.Matches(msg, keys.Loopback):
			return m.requestInput(pipeline.InputLoopback)
		case key.Matches(msg, keys.NoInput):
			return m.requestInput(pipeline.InputNone)
		case key.Matches(msg, keys.Bars):
			return m.setView(pipeline.ViewBars), nil
		case key.Matches(msg, keys.Wave):
			return m.setView(pipeline.ViewWave), nil
		case key.Matches(msg, keys.NextView):
			return m.setView(m.ctrl.ViewMode().Next()), nil
		case key.Matches(msg, keys.Hide):
			return m.setView(pipeline.ViewNone), nil
		}
	}
	return m, nil
}

func (m VisualizerModel) requestInput(mode pipeline.InputMode) (tea.Model, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	m.pending = true
	m.wanted = mode
	m.status = "switching to " + mode.String() + "..."
	return m, m.setInput(mode)
}

// View renders the header, the active view and the key help.
func (m VisualizerModel) View() string {
	rows := m.height - chromeRows
	if m.help.ShowAll {
		rows -= 2
	}
	rows = max(rows, 1)
	cols := max(m.width, minColumns)

	snap := m.ctrl.Snapshot()
	var values []float64
	if snap != nil {
		values = snap.Values
	}
	var body string
	switch m.ctrl.ViewMode() {
	case pipeline.ViewBars:
		body = barStyle.Render(RenderBars(values, m.peak, cols, rows))
	case pipeline.ViewWave:
		body = barStyle.Render(RenderWave(values, m.peak, cols, rows))
	default:
		body = strings.Repeat("\n", rows-1)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", m.header(snap), body, m.help.View(keys))
}

func (m VisualizerModel) header(snap *spectrum.Snapshot) string {
	input := m.ctrl.InputMode()
	if m.pending {
		input = m.wanted
	}
	title := titleStyle.Render("Spectrum")
	info := fmt.Sprintf(" input: %s  view: %s", input, m.ctrl.ViewMode())
	if v, bin := snap.Peak(); bin >= 0 && v > 0 {
		info += fmt.Sprintf("  peak: %.0f Hz", m.ctrl.FrequencyForBin(bin))
	}
	line := title + statusStyle.Render(info)
	if m.err != nil {
		line += "  " + errorStyle.Render(m.err.Error())
	} else if m.status != "" {
		line += "  " + infoStyle.Render(m.status)
	}
	return line
}

// nextPeak decays the running peak and raises it to the loudest value.
func nextPeak(peak float64, values []float64) float64 {
	peak *= peakDecay
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	return math.Max(peak, minPeak)
}

// Columns groups values into n columns, keeping the largest value of each
// group. With fewer values than columns every value gets its own column.
func Columns(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, n)
	for i := range out {
		lo := i * len(values) / n
		hi := (i + 1) * len(values) / n
		for _, v := range values[lo:hi] {
			if v > out[i] {
				out[i] = v
			}
		}
	}
	return out
}

// levels returns the column heights in eighths of a row.
func levels(values []float64, peak float64, cols, rows int) []int {
	group := Columns(values, cols)
	if peak <= 0 {
		peak = minPeak
	}
	out := make([]int, len(group))
	for i, v := range group {
		h := int(math.Round(v / peak * float64(rows*8)))
		out[i] = min(max(h, 0), rows*8)
	}
	return out
}

var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderBars draws one vertical bar per column, rows tall, scaled to peak.
func RenderBars(values []float64, peak float64, cols, rows int) string {
	hs := levels(values, peak, cols, rows)
	var sb strings.Builder
	for r := rows - 1; r >= 0; r-- {
		for _, h := range hs {
			fill := h - r*8
			sb.WriteRune(eighths[min(max(fill, 0), 8)])
		}
		if r > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// RenderWave draws the spectrum as an envelope mirrored around the middle row.
func RenderWave(values []float64, peak float64, cols, rows int) string {
	half := rows / 2
	hs := levels(values, peak, cols, max(half, 1))
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		dist := r - half // rows from the centre
		if dist < 0 {
			dist = -dist
		}
		for _, h := range hs {
			switch {
			case r == half && h == 0:
				sb.WriteRune('─')
			case h > 0 && h >= dist*8:
				sb.WriteRune('█')
			default:
				sb.WriteRune(' ')
			}
		}
		if r < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// NewVisualizerProgram wraps m in an alt-screen program.
func NewVisualizerProgram(m VisualizerModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}
