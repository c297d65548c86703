package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"visualizer/internal/log"
)

var (
	// ErrLoopbackUnsupported is returned when the platform has no loopback
	// capture backend.
	ErrLoopbackUnsupported = errors.New("system loopback capture is not supported on this platform")
	// ErrDeviceStopped is reported when the backend stops a device on its own,
	// e.g. because the default output changed or was removed.
	ErrDeviceStopped = errors.New("capture device stopped unexpectedly")
)

// LoopbackSupported reports whether loopback capture can work here. miniaudio
// only implements loopback devices for WASAPI.
func LoopbackSupported() bool {
	return runtime.GOOS == "windows"
}

// Loopback captures the system output mix as mono 16-bit audio.
type Loopback struct {
	sampleRate uint32
	periodMs   uint32
	log        log.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	stopping atomic.Bool
}

// NewLoopback returns a stopped Loopback capturing at sampleRate with device
// callbacks roughly every period.
func NewLoopback(sampleRate float64, period time.Duration) *Loopback {
	return &Loopback{
		sampleRate: uint32(sampleRate),
		periodMs:   uint32(max(period.Milliseconds(), 1)),
		log:        log.Named("loopback"),
	}
}

// Name returns the source name.
func (l *Loopback) Name() string { return "loopback" }

// Start opens the default output device in loopback mode.
func (l *Loopback) Start(onData func([]byte), onError func(error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.device != nil {
		return ErrAlreadyStarted
	}
	if !LoopbackSupported() {
		return ErrLoopbackUnsupported
	}

	ctx, err := malgo.InitContext([]malgo.Backend{malgo.BackendWasapi}, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = l.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = l.periodMs

	l.stopping.Store(false)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			onData(pInputSamples)
		},
		Stop: func() {
			if !l.stopping.Load() && onError != nil {
				onError(ErrDeviceStopped)
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		l.freeContext(ctx)
		return fmt.Errorf("failed to initialize loopback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		l.freeContext(ctx)
		return fmt.Errorf("failed to start loopback device: %w", err)
	}

	l.malgoCtx = ctx
	l.device = device
	l.log.Infof("capturing system output (%d Hz, %dms period)", l.sampleRate, l.periodMs)
	return nil
}

// Stop stops and releases the device and its context.
func (l *Loopback) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.device == nil {
		return nil
	}

	l.stopping.Store(true)
	var stopErr error
	if err := l.device.Stop(); err != nil {
		stopErr = fmt.Errorf("failed to stop loopback device: %w", err)
	}
	l.device.Uninit()
	l.device = nil

	l.freeContext(l.malgoCtx)
	l.malgoCtx = nil
	l.log.Debugf("stopped")
	return stopErr
}

func (l *Loopback) freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}
	if err := ctx.Uninit(); err != nil {
		l.log.Warnf("malgo context uninit error: %v", err)
	}
	ctx.Free()
}
