package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"visualizer/internal/audio"
	"visualizer/internal/pipeline"
	"visualizer/internal/spectrum"
)

type fakePipeline struct {
	snap    *spectrum.Snapshot
	input   pipeline.InputMode
	view    pipeline.ViewMode
	failOn  pipeline.InputMode
	setErr  error
	setCall int
}

func (f *fakePipeline) Snapshot() *spectrum.Snapshot   { return f.snap }
func (f *fakePipeline) InputMode() pipeline.InputMode  { return f.input }
func (f *fakePipeline) ViewMode() pipeline.ViewMode    { return f.view }
func (f *fakePipeline) SetViewMode(v pipeline.ViewMode) { f.view = v }
func (f *fakePipeline) FrequencyForBin(i int) float64  { return float64(i) * 10 }

func (f *fakePipeline) SetInputMode(m pipeline.InputMode) error {
	f.setCall++
	if m == f.failOn && f.setErr != nil {
		f.input = pipeline.InputNone
		return f.setErr
	}
	f.input = m
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestColumns(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		n      int
		want   []float64
	}{
		{"empty", nil, 4, nil},
		{"zero columns", []float64{1}, 0, nil},
		{"fewer values", []float64{1, 2}, 4, []float64{1, 2}},
		{"max per group", []float64{1, 5, 2, 3, 9, 0, 4, 4}, 4, []float64{5, 3, 9, 4}},
		{"uneven groups", []float64{1, 2, 3}, 2, []float64{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Columns(tt.values, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("Columns = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Columns = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestRenderBars(t *testing.T) {
	out := RenderBars([]float64{0, 10, 5}, 10, 3, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2:\n%s", len(lines), out)
	}
	if lines[0] != " █ " {
		t.Errorf("top row = %q", lines[0])
	}
	if lines[1] != " ██" {
		t.Errorf("bottom row = %q", lines[1])
	}
}

func TestRenderBarsClampsAbovePeak(t *testing.T) {
	out := RenderBars([]float64{100}, 10, 1, 3)
	if out != "█\n█\n█" {
		t.Errorf("RenderBars = %q", out)
	}
}

func TestRenderWaveMirrors(t *testing.T) {
	out := RenderWave([]float64{10, 0}, 10, 2, 5)
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d rows:\n%s", len(lines), out)
	}
	want := []string{"█ ", "█ ", "█─", "█ ", "█ "}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestNextPeak(t *testing.T) {
	if p := nextPeak(100, []float64{1}); p != 100*peakDecay {
		t.Errorf("decayed peak = %v", p)
	}
	if p := nextPeak(10, []float64{50}); p != 50 {
		t.Errorf("raised peak = %v", p)
	}
	if p := nextPeak(0, nil); p != minPeak {
		t.Errorf("floor = %v", p)
	}
}

func TestVisualizerViewKeys(t *testing.T) {
	fp := &fakePipeline{view: pipeline.ViewBars}
	var changes int
	m := NewVisualizerModel(fp, 0, func(pipeline.InputMode, pipeline.ViewMode) { changes++ })

	steps := []struct {
		key  string
		want pipeline.ViewMode
	}{
		{"w", pipeline.ViewWave},
		{"b", pipeline.ViewBars},
		{"v", pipeline.ViewWave},
		{"x", pipeline.ViewNone},
	}
	for _, s := range steps {
		next, _ := m.Update(keyMsg(s.key))
		m = next.(VisualizerModel)
		if fp.view != s.want {
			t.Errorf("after %q view = %s, want %s", s.key, fp.view, s.want)
		}
	}
	if changes != len(steps) {
		t.Errorf("onChange called %d times, want %d", changes, len(steps))
	}
}

func TestVisualizerInputSwitchRunsAsCommand(t *testing.T) {
	fp := &fakePipeline{view: pipeline.ViewBars}
	var saved pipeline.InputMode = -1
	m := NewVisualizerModel(fp, 0, func(in pipeline.InputMode, _ pipeline.ViewMode) { saved = in })

	next, cmd := m.Update(keyMsg("m"))
	m = next.(VisualizerModel)
	if cmd == nil {
		t.Fatal("expected a command for the input switch")
	}
	if fp.setCall != 0 {
		t.Fatal("SetInputMode ran on the UI goroutine")
	}

	// A second request while the first is pending is ignored.
	if _, again := m.Update(keyMsg("l")); again != nil {
		t.Error("second switch queued while pending")
	}

	next, _ = m.Update(cmd())
	m = next.(VisualizerModel)
	if fp.input != pipeline.InputMicrophone {
		t.Errorf("input = %s", fp.input)
	}
	if saved != pipeline.InputMicrophone {
		t.Errorf("onChange saw %s", saved)
	}
	if m.pending || m.err != nil {
		t.Errorf("pending=%t err=%v", m.pending, m.err)
	}
}

func TestVisualizerInputFailureShowsError(t *testing.T) {
	fp := &fakePipeline{view: pipeline.ViewBars, failOn: pipeline.InputLoopback, setErr: pipeline.ErrDevice}
	m := NewVisualizerModel(fp, 0, nil)

	next, cmd := m.Update(keyMsg("l"))
	m = next.(VisualizerModel)
	next, _ = m.Update(cmd())
	m = next.(VisualizerModel)

	if !errors.Is(m.err, pipeline.ErrDevice) {
		t.Errorf("err = %v", m.err)
	}
	if !strings.Contains(m.View(), "input: none") {
		t.Errorf("view does not show fallback:\n%s", m.View())
	}
}

func TestVisualizerInputLost(t *testing.T) {
	fp := &fakePipeline{view: pipeline.ViewBars}
	m := NewVisualizerModel(fp, 0, nil)

	next, _ := m.Update(InputLostMsg{Mode: pipeline.InputMicrophone, Err: errors.New("unplugged")})
	m = next.(VisualizerModel)
	if m.err == nil || !strings.Contains(m.View(), "unplugged") {
		t.Errorf("loss not reported:\n%s", m.View())
	}
}

func TestVisualizerQuitAndTick(t *testing.T) {
	fp := &fakePipeline{view: pipeline.ViewBars, snap: &spectrum.Snapshot{Values: []float64{0, 40}}}
	m := NewVisualizerModel(fp, 0, nil)

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}

	next, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Error("tick did not reschedule")
	}
	if p := next.(VisualizerModel).peak; p != 40 {
		t.Errorf("peak = %v, want 40", p)
	}
}

func TestVisualizerViewRendersPeakFrequency(t *testing.T) {
	fp := &fakePipeline{view: pipeline.ViewBars, snap: &spectrum.Snapshot{Values: []float64{0, 1, 8, 2}}}
	m := NewVisualizerModel(fp, 0, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 12})
	out := next.(VisualizerModel).View()
	if !strings.Contains(out, "peak: 20 Hz") {
		t.Errorf("missing peak frequency:\n%s", out)
	}
}

func TestDeviceListModelSelect(t *testing.T) {
	m := NewDeviceListModel(3)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	next, _ = next.Update(devicesMsg{devices: []audio.Device{
		{ID: 1, Name: "Built-in", MaxInputChannels: 2},
		{ID: 3, Name: "USB", MaxInputChannels: 1},
	}})
	m = next.(DeviceListModel)
	if m.selectedIndex != 1 {
		t.Errorf("cursor on %d, want the current device", m.selectedIndex)
	}
	if !strings.Contains(m.View(), "USB") {
		t.Errorf("view:\n%s", m.View())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(DeviceListModel)
	if m.Selected() == nil || m.Selected().ID != 1 {
		t.Fatalf("selected %+v, want device 1", m.Selected())
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("enter did not quit")
	}
}

func TestDeviceListModelCancel(t *testing.T) {
	m := NewDeviceListModel(-1)
	next, cmd := m.Update(keyMsg("q"))
	if next.(DeviceListModel).Selected() != nil {
		t.Error("cancel selected a device")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
