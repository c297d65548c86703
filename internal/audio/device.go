package audio

import "time"

// Device represents an audio device
type Device struct {
	ID                      int
	Name                    string
	HostAPI                 string
	MaxInputChannels        int
	MaxOutputChannels       int
	DefaultSampleRate       float64
	DefaultLowInputLatency  time.Duration
	DefaultHighInputLatency time.Duration
}

// IsInput reports whether the device can capture audio.
func (d Device) IsInput() bool {
	return d.MaxInputChannels > 0
}

// Kind describes the device direction.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "Unknown"
	}
}

// GetDevices returns all available audio devices. It initializes PortAudio
// for the duration of the call, so it can be used before the pipeline starts.
func GetDevices() ([]Device, error) {
	// Initialize PortAudio if needed
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	return HostDevices()
}

// InputDevices filters devices down to those that can capture.
func InputDevices(devices []Device) []Device {
	var inputs []Device
	for _, d := range devices {
		if d.IsInput() {
			inputs = append(inputs, d)
		}
	}
	return inputs
}
