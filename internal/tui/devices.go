package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"visualizer/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

var (
	upKey     = key.NewBinding(key.WithKeys("up", "k"))
	downKey   = key.NewBinding(key.WithKeys("down", "j"))
	selectKey = key.NewBinding(key.WithKeys("enter"))
	cancelKey = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))
)

// DeviceListModel lets the user pick the microphone used for capture.
type DeviceListModel struct {
	devices       []audio.Device
	current       int // device ID in use, -1 for the host default
	selectedIndex int
	selected      *audio.Device
	viewport      viewport.Model
	ready         bool
	err           error
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a picker with the cursor on current.
func NewDeviceListModel(current int) DeviceListModel {
	return DeviceListModel{current: current}
}

// Init loads the input devices.
func (m DeviceListModel) Init() tea.Cmd {
	return fetchDevices
}

// fetchDevices gets the available input devices.
func fetchDevices() tea.Msg {
	devices, err := audio.GetDevices()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{audio.InputDevices(devices)}
}

// Selected returns the chosen device, or nil when the picker was cancelled.
func (m DeviceListModel) Selected() *audio.Device {
	return m.selected
}

// Update handles navigation and selection.
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = msg.devices
		for i, d := range m.devices {
			if d.ID == m.current {
				m.selectedIndex = i
			}
		}
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, cancelKey):
			return m, tea.Quit
		case m.err != nil:
			return m, tea.Quit
		case key.Matches(msg, upKey):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderDevices())
			}
			return m, nil
		case key.Matches(msg, downKey):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderDevices())
			}
			return m, nil
		case key.Matches(msg, selectKey):
			if len(m.devices) > 0 {
				d := m.devices[m.selectedIndex]
				m.selected = &d
			}
			return m, tea.Quit
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the device list.
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}

	title := titleStyle.Render("Input Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Use device • q: Cancel")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list.
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := " "
		if device.ID == m.current {
			marker = "*"
		}
		deviceInfo := fmt.Sprintf("%s [%d] %s (%s)\n", marker, device.ID, device.Name, device.HostAPI)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Default sample rate: %.0f Hz\n",
			device.MaxInputChannels, device.DefaultSampleRate)
		deviceInfo += fmt.Sprintf("    Latency: %s low / %s high\n",
			device.DefaultLowInputLatency, device.DefaultHighInputLatency)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}
		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker and returns the chosen device, or nil if the
// user cancelled.
func PickDevice(current int) (*audio.Device, error) {
	p := tea.NewProgram(NewDeviceListModel(current), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceListModel).Selected(), nil
}
