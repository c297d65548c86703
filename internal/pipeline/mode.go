package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a mode name cannot be parsed.
var ErrUnknownMode = errors.New("unknown mode")

// InputMode selects which capture source feeds the pipeline. Exactly one mode
// is active at a time.
type InputMode int32

const (
	InputNone       InputMode = iota // No capture; the spectrum decays.
	InputMicrophone                  // Default or configured input device.
	InputLoopback                    // The system's outgoing audio mix.
)

// InputModes lists every input mode in display order.
var InputModes = []InputMode{InputNone, InputMicrophone, InputLoopback}

func (m InputMode) String() string {
	switch m {
	case InputNone:
		return "none"
	case InputMicrophone:
		return "microphone"
	case InputLoopback:
		return "loopback"
	default:
		return fmt.Sprintf("InputMode(%d)", int32(m))
	}
}

// ParseInputMode converts a case-insensitive name to an InputMode. The empty
// string parses as InputNone.
func ParseInputMode(s string) (InputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return InputNone, nil
	case "microphone", "mic":
		return InputMicrophone, nil
	case "loopback", "system":
		return InputLoopback, nil
	default:
		return InputNone, fmt.Errorf("%w: input %q (want none, microphone or loopback)", ErrUnknownMode, s)
	}
}

// ViewMode selects how the spectrum is drawn. The pipeline only cares whether
// any view is active: with ViewNone it skips the transform.
type ViewMode int32

const (
	ViewNone ViewMode = iota
	ViewBars          // Classic vertical bars.
	ViewWave          // Mirrored waveform of the spectrum.
)

// ViewModes lists every view mode in display order.
var ViewModes = []ViewMode{ViewNone, ViewBars, ViewWave}

func (m ViewMode) String() string {
	switch m {
	case ViewNone:
		return "none"
	case ViewBars:
		return "bars"
	case ViewWave:
		return "wave"
	default:
		return fmt.Sprintf("ViewMode(%d)", int32(m))
	}
}

// Next cycles through the visible views, skipping ViewNone.
func (m ViewMode) Next() ViewMode {
	if m == ViewBars {
		return ViewWave
	}
	return ViewBars
}

// ParseViewMode converts a case-insensitive name to a ViewMode. The empty
// string parses as ViewNone.
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return ViewNone, nil
	case "bars", "classic":
		return ViewBars, nil
	case "wave":
		return ViewWave, nil
	default:
		return ViewNone, fmt.Errorf("%w: view %q (want none, bars or wave)", ErrUnknownMode, s)
	}
}

func inputModeNames() []string {
	names := make([]string, len(InputModes))
	for i, m := range InputModes {
		names[i] = m.String()
	}
	return names
}
