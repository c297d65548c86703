// SPDX-License-Identifier: MIT
/*
Package audio implements the capture sources that feed the spectrum pipeline:
- Microphone capture through PortAudio
- System loopback capture through miniaudio (malgo)
- WAV recording of analysed frames

Sources deliver mono signed 16-bit little-endian bytes from the device
callback. Callbacks only encode into a pre-allocated scratch buffer and hand
it on, so the hot path does not allocate.
*/
package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"visualizer/internal/frame"
	"visualizer/internal/log"
)

var (
	// ErrAlreadyStarted is returned by Start on a running source.
	ErrAlreadyStarted = errors.New("capture source already started")
	// ErrStalled is reported when a device stops delivering audio, which is
	// how PortAudio surfaces a removed device.
	ErrStalled = errors.New("capture device stalled")
)

// DefaultStallTimeout is how long a microphone may go without a callback
// before it is reported as lost.
const DefaultStallTimeout = 2 * time.Second

// MicrophoneConfig configures a Microphone.
type MicrophoneConfig struct {
	DeviceID        int     // PortAudio device index, -1 for the default input.
	SampleRate      float64 // Requested capture rate in Hz.
	FramesPerBuffer int     // Frames per device callback.
	LowLatency      bool    // Use the device's low input latency.
	// StallTimeout reports the device as lost after this long without a
	// callback. Zero disables the check.
	StallTimeout time.Duration
}

// Microphone captures mono audio from a PortAudio input device.
// PortAudio must be initialized with Initialize before Start.
type Microphone struct {
	cfg MicrophoneConfig
	log log.Logger

	mu         sync.Mutex
	stream     *portaudio.Stream
	deviceName string
	done       chan struct{}
	wg         sync.WaitGroup

	// Owned by the PortAudio callback while the stream runs.
	scratch []byte
	onData  func([]byte)

	lastCallback atomic.Int64 // unix nanos
}

// NewMicrophone returns a stopped Microphone.
func NewMicrophone(cfg MicrophoneConfig) *Microphone {
	return &Microphone{
		cfg: cfg,
		log: log.Named("microphone"),
	}
}

// Name returns the source name including the opened device, if any.
func (m *Microphone) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deviceName == "" {
		return "microphone"
	}
	return "microphone: " + m.deviceName
}

// Start opens the configured device and begins delivering audio to onData.
func (m *Microphone) Start(onData func([]byte), onError func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return ErrAlreadyStarted
	}

	device, err := InputDevice(m.cfg.DeviceID)
	if err != nil {
		return err
	}

	latency := device.DefaultHighInputLatency
	if m.cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: m.cfg.FramesPerBuffer,
		SampleRate:      m.cfg.SampleRate,
	}

	// Pre-allocate the byte buffer handed to onData.
	m.scratch = make([]byte, max(m.cfg.FramesPerBuffer, 1)*frame.BytesPerSample)
	m.onData = onData
	m.lastCallback.Store(time.Now().UnixNano())

	stream, err := portaudio.OpenStream(params, m.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start %s: %w", device.Name, err)
	}

	m.stream = stream
	m.deviceName = device.Name
	m.done = make(chan struct{})

	if m.cfg.StallTimeout > 0 && onError != nil {
		m.wg.Add(1)
		go m.watch(m.done, onError)
	}

	m.log.Infof("capturing from %s (%.0f Hz, %d frames/buffer, latency %s)",
		device.Name, m.cfg.SampleRate, m.cfg.FramesPerBuffer, latency)
	return nil
}

// Stop stops and closes the stream. No callback runs after it returns.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	stream := m.stream
	done := m.done
	m.stream = nil
	m.done = nil
	m.mu.Unlock()

	if stream == nil {
		return nil
	}

	close(done)
	m.wg.Wait()

	stopErr := stream.Stop()
	closeErr := stream.Close()
	if err := errors.Join(stopErr, closeErr); err != nil {
		return fmt.Errorf("failed to stop microphone: %w", err)
	}
	m.log.Debugf("stopped")
	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Uses the pre-allocated scratch buffer only
// - No locks
func (m *Microphone) processInputStream(in []int16) {
	n := len(in) * frame.BytesPerSample
	if n > len(m.scratch) {
		m.scratch = make([]byte, n)
	}
	frame.Encode(m.scratch[:n], in)
	m.lastCallback.Store(time.Now().UnixNano())
	m.onData(m.scratch[:n])
}

// watch reports the device as lost when callbacks stop arriving.
func (m *Microphone) watch(done <-chan struct{}, onError func(error)) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.StallTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, m.lastCallback.Load()))
			if idle > m.cfg.StallTimeout {
				onError(fmt.Errorf("%w: no audio for %s", ErrStalled, idle.Round(time.Millisecond)))
				return
			}
		}
	}
}
