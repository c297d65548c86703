/*
Package pipeline drives the capture to spectrum pipeline at a fixed cadence.

Three timing domains meet here:

	capture callback ──push──> ring.Buffer            (device goroutine)
	ticker ──read──> frame ──fft──> smoother ──swap──> Snapshot   (tick goroutine)
	Snapshot() / Spectrum()                            (any goroutine)

The capture callback only pushes bytes into a bounded, lossy ring buffer. The
tick goroutine owns the extractor, transform and smoother and publishes each
result by swapping an atomic pointer to an immutable Snapshot, so readers never
observe a partially updated spectrum. Input mode transitions run on the
caller's goroutine under a mutex the tick loop never takes.
*/
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"visualizer/internal/fft"
	"visualizer/internal/frame"
	"visualizer/internal/log"
	"visualizer/internal/metrics"
	"visualizer/internal/ring"
	"visualizer/internal/spectrum"
	"visualizer/pkg/bitint"
)

var (
	// ErrInvalidConfig is returned by Start when the options cannot produce a
	// valid transform.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")
	// ErrAlreadyRunning is returned by Start on a running controller.
	ErrAlreadyRunning = errors.New("pipeline already running")
	// ErrNotRunning is returned by SetInputMode on a stopped controller.
	ErrNotRunning = errors.New("pipeline not running")
	// ErrDevice wraps every capture device failure. The pipeline keeps
	// running with InputNone when it is returned.
	ErrDevice = errors.New("capture device error")
)

// Defaults used by callers that do not load a configuration.
const (
	DefaultFrameSize  = 2048
	DefaultSampleRate = 44100
	DefaultInterval   = 20 * time.Millisecond
)

// Options configures a Controller. It is validated by Start.
type Options struct {
	FrameSize  int           // Samples per frame N, a power of two.
	SampleRate float64       // Capture rate in Hz; only used to label bins.
	Interval   time.Duration // Tick period.
	// BufferBytes is the capture ring capacity. Zero means two frames; any
	// other value must hold at least one frame.
	BufferBytes int

	Sources     map[InputMode]Source // Capture source per mode; InputNone needs none.
	InitialView ViewMode
	Tap         FrameTap         // Optional; receives every frame read from the buffer.
	Metrics     *metrics.Metrics // Optional.

	// OnInputLost is called, outside any controller lock, after an active
	// source reported an asynchronous failure and the pipeline fell back to
	// InputNone.
	OnInputLost func(mode InputMode, err error)
}

func (o Options) validate() error {
	if o.FrameSize < 2 || !bitint.IsPowerOfTwo(o.FrameSize) {
		lo, hi := bitint.Nearest(o.FrameSize)
		return fmt.Errorf("%w: frame size %d is not a power of two >= 2 (try %d or %d)", ErrInvalidConfig, o.FrameSize, lo, hi)
	}
	if o.Interval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %s", ErrInvalidConfig, o.Interval)
	}
	if o.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidConfig, o.SampleRate)
	}
	if frameBytes := o.FrameSize * frame.BytesPerSample; o.BufferBytes != 0 && o.BufferBytes < frameBytes {
		return fmt.Errorf("%w: capture buffer of %d bytes cannot hold a %d byte frame", ErrInvalidConfig, o.BufferBytes, frameBytes)
	}
	return nil
}

func (o Options) bufferBytes() int {
	if o.BufferBytes > 0 {
		return o.BufferBytes
	}
	return 2 * o.FrameSize * frame.BytesPerSample
}

// Controller owns the tick loop and the active capture source.
type Controller struct {
	opts Options
	log  log.Logger

	// Tick state. Written by Start while the loop is stopped, then owned by
	// the tick goroutine.
	buffer    *ring.Buffer
	extractor *frame.Extractor
	smoother  *spectrum.Smoother
	tap       FrameTap
	seq       uint64

	fft     atomic.Pointer[fft.Processor] // read by FrequencyForBin from any goroutine
	current atomic.Pointer[spectrum.Snapshot]
	input   atomic.Int32 // InputMode
	view    atomic.Int32 // ViewMode
	running atomic.Bool

	// transition serializes Start, Stop, SetInputMode and device loss
	// handling. The tick loop never takes it.
	transition sync.Mutex
	active     Source
	generation atomic.Uint64 // bumped whenever the active source changes

	// Tick loop lifecycle.
	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns a stopped Controller.
func New(opts Options) *Controller {
	c := &Controller{
		opts: opts,
		log:  log.Named("pipeline"),
	}
	c.view.Store(int32(opts.InitialView))
	return c
}

// Start validates the options, allocates the capture buffer and tick state,
// and begins the tick loop with InputNone. The most recent snapshot of a
// previous run stays visible until the first tick.
func (c *Controller) Start() error {
	c.transition.Lock()
	defer c.transition.Unlock()

	if c.running.Load() {
		return ErrAlreadyRunning
	}
	if err := c.opts.validate(); err != nil {
		return err
	}

	proc, err := fft.NewProcessor(c.opts.FrameSize, c.opts.SampleRate)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	ext, err := frame.NewExtractor(c.opts.FrameSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c.buffer = ring.New(c.opts.bufferBytes())
	c.extractor = ext
	c.fft.Store(proc)
	c.smoother = spectrum.NewSmoother(proc.Bins())
	if prev := c.current.Load(); prev.Len() == proc.Bins() {
		c.smoother.Seed(prev.Values)
	}
	c.tap = c.opts.Tap

	c.input.Store(int32(InputNone))
	c.opts.Metrics.SetActiveInput(InputNone.String(), inputModeNames())
	if c.current.Load() == nil {
		c.publish(c.smoother.Last(), false)
	}

	c.running.Store(true)
	c.startLoop()

	c.log.Infof("started (frame %d samples, %d bins, buffer %d bytes, interval %s)",
		c.opts.FrameSize, proc.Bins(), c.buffer.Cap(), c.opts.Interval)
	return nil
}

// Stop stops the active source and the tick loop. It returns once the loop
// has exited. Stopping a stopped controller is a no-op.
func (c *Controller) Stop() error {
	c.transition.Lock()
	defer c.transition.Unlock()

	if !c.running.Load() {
		return nil
	}
	err := c.stopActiveLocked()
	c.running.Store(false)
	c.stopLoop()
	c.buffer = nil

	c.log.Infof("stopped after %d ticks", c.seq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}
	return nil
}

// SetInputMode stops the active source and starts the one for mode. Selecting
// the active mode again is a no-op. If the new source fails to start, the
// error wraps ErrDevice and the pipeline keeps running with InputNone.
func (c *Controller) SetInputMode(mode InputMode) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	if !c.running.Load() {
		return ErrNotRunning
	}
	if mode == InputMode(c.input.Load()) && (mode == InputNone || c.active != nil) {
		return nil
	}

	prev := c.InputMode()
	if err := c.stopActiveLocked(); err != nil {
		c.log.Warnf("stopping %s: %v", prev, err)
	}
	if mode == InputNone {
		c.log.Infof("input: none")
		return nil
	}

	src := c.opts.Sources[mode]
	if src == nil {
		c.opts.Metrics.RecordDeviceError(mode.String())
		return fmt.Errorf("%w: no source for %s input", ErrDevice, mode)
	}

	gen := c.generation.Add(1)
	buf := c.buffer
	m := c.opts.Metrics
	onData := func(p []byte) {
		if c.generation.Load() != gen {
			return
		}
		dropped := buf.Push(p)
		m.RecordCapture(len(p), dropped)
	}
	onError := func(err error) {
		go c.handleSourceError(gen, mode, err)
	}

	if err := src.Start(onData, onError); err != nil {
		c.generation.Add(1)
		m.RecordDeviceError(mode.String())
		c.log.Warnf("starting %s (%s): %v", mode, src.Name(), err)
		return fmt.Errorf("%w: %s: %w", ErrDevice, src.Name(), err)
	}

	c.active = src
	c.input.Store(int32(mode))
	m.SetActiveInput(mode.String(), inputModeNames())
	c.log.Infof("input: %s (%s)", mode, src.Name())
	return nil
}

// stopActiveLocked stops the active source, clears stale capture data and
// switches to InputNone. The caller holds c.transition.
func (c *Controller) stopActiveLocked() error {
	if c.active == nil {
		return nil
	}
	c.generation.Add(1)
	src := c.active
	c.active = nil
	c.input.Store(int32(InputNone))
	c.opts.Metrics.SetActiveInput(InputNone.String(), inputModeNames())

	err := src.Stop()
	c.buffer.Reset()
	return err
}

func (c *Controller) handleSourceError(gen uint64, mode InputMode, err error) {
	c.transition.Lock()
	if c.generation.Load() != gen || c.active == nil {
		c.transition.Unlock()
		return
	}
	c.log.Warnf("%s capture lost, falling back to none: %v", mode, err)
	c.opts.Metrics.RecordDeviceError(mode.String())
	if stopErr := c.stopActiveLocked(); stopErr != nil {
		c.log.Debugf("stopping lost %s source: %v", mode, stopErr)
	}
	c.transition.Unlock()

	if c.opts.OnInputLost != nil {
		c.opts.OnInputLost(mode, err)
	}
}

// SetViewMode changes the view. With ViewNone the transform is skipped and the
// spectrum decays.
func (c *Controller) SetViewMode(mode ViewMode) {
	c.view.Store(int32(mode))
}

// IsRunning reports whether the tick loop is running.
func (c *Controller) IsRunning() bool { return c.running.Load() }

// InputMode returns the active input mode.
func (c *Controller) InputMode() InputMode { return InputMode(c.input.Load()) }

// ViewMode returns the current view mode.
func (c *Controller) ViewMode() ViewMode { return ViewMode(c.view.Load()) }

// Snapshot returns the latest published spectrum, or nil before the first
// Start. It never blocks and the result must not be modified.
func (c *Controller) Snapshot() *spectrum.Snapshot {
	return c.current.Load()
}

// Spectrum returns a copy of the latest published values.
func (c *Controller) Spectrum() []float64 {
	return c.current.Load().Copy()
}

// FrequencyForBin returns the centre frequency of bin i in Hz, or 0 before
// the first Start and for bins outside the spectrum.
func (c *Controller) FrequencyForBin(i int) float64 {
	proc := c.fft.Load()
	if proc == nil {
		return 0
	}
	return proc.FrequencyForBin(i)
}

// --- Tick loop ---

func (c *Controller) startLoop() {
	c.mu.Lock()
	c.ticker = time.NewTicker(c.opts.Interval)
	c.doneChan = make(chan struct{})
	c.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on c.ticker/c.doneChan
	ticker := c.ticker
	doneChan := c.doneChan
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ticker.C:
				c.tick()
			case <-doneChan:
				return
			}
		}
	}()
}

func (c *Controller) stopLoop() {
	c.mu.Lock()
	if c.ticker == nil {
		c.mu.Unlock()
		return
	}
	c.stopOnce.Do(func() {
		close(c.doneChan)
		c.ticker.Stop()
		c.ticker = nil
	})
	c.mu.Unlock()

	c.wg.Wait()
}

// tick runs one read, extract, transform, smooth and publish cycle. A panic
// anywhere in the cycle counts as a tick without new data: the frame tap is
// dropped and the decayed spectrum is published.
func (c *Controller) tick() {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.opts.Metrics.RecordTickPanic()
			c.log.Errorf("tick panic recovered, disabling frame tap: %v", r)
			c.tap = nil
			c.publish(c.smoother.Decay(), false)
			c.opts.Metrics.RecordTick(false, time.Since(start))
		}
	}()

	values, fresh := c.step()
	c.publish(values, fresh)
	c.opts.Metrics.RecordTick(fresh, time.Since(start))
}

// step returns the next spectrum and whether it was computed from new data.
func (c *Controller) step() ([]float64, bool) {
	if InputMode(c.input.Load()) == InputNone {
		return c.smoother.Decay(), false
	}

	raw := c.extractor.RawBuffer()
	if !c.buffer.Read(raw) {
		c.opts.Metrics.RecordUnderrun()
		return c.smoother.Decay(), false
	}

	pcm, err := c.extractor.Decode(raw)
	if err != nil {
		c.log.Errorf("decode: %v", err)
		return c.smoother.Decay(), false
	}

	if c.tap != nil {
		if err := c.tap.WriteFrame(c.extractor.Samples()); err != nil {
			c.log.Errorf("frame tap failed, disabling it: %v", err)
			c.tap = nil
		}
	}

	if frame.IsDegenerate(raw) {
		c.opts.Metrics.RecordDegenerateFrame()
		return c.smoother.Decay(), false
	}
	if ViewMode(c.view.Load()) == ViewNone {
		return c.smoother.Decay(), false
	}

	mags, err := c.fft.Load().Transform(pcm)
	if err != nil {
		c.log.Errorf("transform: %v", err)
		return c.smoother.Decay(), false
	}
	return c.smoother.Update(mags), true
}

// publish hands values to readers. values must never be modified afterwards;
// the smoother guarantees this by allocating each result.
func (c *Controller) publish(values []float64, fresh bool) {
	c.seq++
	c.current.Store(&spectrum.Snapshot{
		Seq:    c.seq,
		At:     time.Now(),
		Fresh:  fresh,
		Values: values,
	})
}
