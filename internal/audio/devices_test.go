package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var fakeInfos = []*portaudio.DeviceInfo{
	{
		Name:                    "Built-in Microphone",
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
		HostApi:                 &portaudio.HostApiInfo{Name: "Core Audio"},
	},
	{
		Name:              "Built-in Output",
		MaxOutputChannels: 2,
		DefaultSampleRate: 44100,
	},
	{
		Name:              "USB Interface",
		MaxInputChannels:  1,
		MaxOutputChannels: 2,
		DefaultSampleRate: 96000,
	},
}

// withFakeDevices swaps the PortAudio queries for canned answers.
func withFakeDevices(t *testing.T, infos []*portaudio.DeviceInfo, err error) {
	t.Helper()
	origDevices, origDefault := paDevicesFunc, paLibDefaultInputDeviceFunc
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, err }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if len(infos) == 0 {
			return nil, fmt.Errorf("no default input")
		}
		return infos[0], nil
	}
	t.Cleanup(func() {
		paDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeInfos) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeInfos))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != fakeInfos[i].Name {
			t.Errorf("Device %d name = %q", i, d.Name)
		}
	}
	if devices[0].HostAPI != "Core Audio" || devices[1].HostAPI != "" {
		t.Errorf("host APIs = %q, %q", devices[0].HostAPI, devices[1].HostAPI)
	}

	inputs := InputDevices(devices)
	if len(inputs) != 2 || inputs[0].ID != 0 || inputs[1].ID != 2 {
		t.Errorf("InputDevices = %+v", inputs)
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	withFakeDevices(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)

	if dev, err := InputDevice(-1); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("default device = %v, %v", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "USB Interface" {
		t.Errorf("InputDevice(2) = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeInfos) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t, fakeInfos, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Built-in Output (Output)",
		"[2] USB Interface (Input/Output)",
		"Latency: Low=3.00ms, High=12.00ms",
		"System loopback capture:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestDeviceKind(t *testing.T) {
	if (Device{}).Kind() != "Unknown" {
		t.Error("device without channels should be Unknown")
	}
}
