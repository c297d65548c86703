package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"visualizer/cmd"
	"visualizer/internal/audio"
	"visualizer/internal/config"
	"visualizer/internal/log"
	"visualizer/internal/metrics"
	"visualizer/internal/pipeline"
	"visualizer/internal/transport"
	"visualizer/internal/transport/udp"
	"visualizer/internal/tui"
	"visualizer/pkg/build"
)

const shutdownTimeout = 5 * time.Second

// main is the entry point for the spectrum visualizer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Load config file, ENV_* overrides, remembered state and flags
//   - Execute one-off commands if requested
//   - Initialize PortAudio and build the capture sources
//
// 2. Concurrent Phase (Hot Path):
//   - Start the pipeline tick loop and the initial input
//   - Start publishers, the metrics endpoint and the terminal UI
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or UI exit
//   - Stop publishers, the pipeline and the recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	inv, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if inv == nil {
		return // --help or --version
	}
	cfg := inv.Config

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	// Handle one-off commands (e.g., device listing) that don't require
	// the pipeline to be running
	if cfg.Command != "" {
		if err := executeCommand(cfg, inv.State); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg, inv.State); err != nil {
		log.Fatalf("%v", err)
	}
}

// run starts the pipeline and everything that reads from it, and blocks
// until a signal arrives or the UI quits.
func run(cfg *config.Config, state *config.State) error {
	closeLog, err := redirectLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	info := build.GetBuildFlags()
	log.Infof("%s %s", info.Name, info)

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	input, err := pipeline.ParseInputMode(cfg.Pipeline.InputMode)
	if err != nil {
		return err
	}
	view, err := pipeline.ParseViewMode(cfg.Pipeline.ViewMode)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	opts := pipeline.Options{
		FrameSize:   cfg.Audio.FrameSize,
		SampleRate:  cfg.Audio.SampleRate,
		Interval:    cfg.Pipeline.TickInterval,
		BufferBytes: cfg.CaptureCapacity(),
		Sources:     newSources(cfg),
		InitialView: view,
		Metrics:     m,
	}

	var recorder *audio.Recorder
	if cfg.Recording.Enabled {
		path := cfg.Recording.OutputFile
		if path == "" {
			path = audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		}
		recorder, err = audio.NewRecorder(path, int(cfg.Audio.SampleRate))
		if err != nil {
			return err
		}
		opts.Tap = recorder
		log.Infof("recording analysed frames to %s", path)
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Errorf("closing recording: %v", err)
			}
			fmt.Printf("Recording saved to: %s (%d samples)\n", recorder.Path(), recorder.Samples())
		}()
	}

	saver := &stateSaver{state: state, path: cfg.StateFile()}

	// program is assigned before the controller starts, so device loss
	// callbacks always see it.
	var program *tea.Program
	opts.OnInputLost = func(mode pipeline.InputMode, err error) {
		log.Warnf("%s input lost: %v", mode, err)
		if program != nil {
			program.Send(tui.InputLostMsg{Mode: mode, Err: err})
		}
	}

	ctrl := pipeline.New(opts)
	if cfg.UI.Enabled {
		model := tui.NewVisualizerModel(ctrl, cfg.UI.RefreshInterval, saver.save)
		program = tui.NewVisualizerProgram(model)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if err := ctrl.Start(); err != nil {
		return err
	}
	if input != pipeline.InputNone {
		if err := ctrl.SetInputMode(input); err != nil {
			log.Warnf("continuing without input: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if m != nil {
		serveMetrics(gctx, g, cfg.Metrics.Addr, m)
	}

	publishers, err := newPublishers(cfg, ctrl, m)
	if err != nil {
		stop()
		_ = ctrl.Stop()
		return err
	}
	for _, p := range publishers {
		p := p
		g.Go(func() error {
			defer p.Close()
			return p.Run(gctx)
		})
	}

	if program != nil {
		g.Go(func() error {
			defer stop()
			_, err := program.Run()
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			program.Quit()
			return nil
		})
	} else {
		log.Infof("running headless, press Ctrl+C to stop")
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	runErr := g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// The recording is closed by its deferred call once the loop has stopped
	// writing to it.
	if err := ctrl.Stop(); err != nil {
		log.Errorf("stopping pipeline: %v", err)
	}
	return runErr
}

// newSources builds the capture source for every input mode.
func newSources(cfg *config.Config) map[pipeline.InputMode]pipeline.Source {
	return map[pipeline.InputMode]pipeline.Source{
		pipeline.InputMicrophone: audio.NewMicrophone(audio.MicrophoneConfig{
			DeviceID:        cfg.Audio.InputDevice,
			SampleRate:      cfg.Audio.SampleRate,
			FramesPerBuffer: cfg.DeviceBufferFrames(),
			LowLatency:      cfg.Audio.LowLatency,
			StallTimeout:    audio.DefaultStallTimeout,
		}),
		pipeline.InputLoopback: audio.NewLoopback(cfg.Audio.SampleRate, cfg.DeviceBufferPeriod()),
	}
}

// newPublishers creates one publisher per enabled transport.
func newPublishers(cfg *config.Config, ctrl *pipeline.Controller, m *metrics.Metrics) ([]*transport.Publisher, error) {
	type target struct {
		t        transport.Transport
		interval time.Duration
	}
	var targets []target
	closeAll := func() {
		for _, tg := range targets {
			tg.t.Close()
		}
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target{sender, cfg.Transport.UDPSendInterval})
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr, m)
		if err != nil {
			closeAll()
			return nil, err
		}
		targets = append(targets, target{ws, cfg.Transport.WebSocketInterval})
	}
	if cfg.Transport.LogEnabled {
		targets = append(targets, target{transport.NewLoggingTransport(), time.Second})
	}

	publishers := make([]*transport.Publisher, 0, len(targets))
	for _, tg := range targets {
		p, err := transport.NewPublisher(tg.interval, ctrl, tg.t, m)
		if err != nil {
			closeAll()
			return nil, err
		}
		publishers = append(publishers, p)
	}
	return publishers, nil
}

// serveMetrics runs the Prometheus endpoint until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Infof("serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// redirectLog keeps log lines off the screen while the UI owns it.
func redirectLog(cfg *config.Config) (func(), error) {
	if !cfg.UI.Enabled {
		return func() {}, nil
	}
	if cfg.LogFile == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

// stateSaver remembers the modes chosen in the UI.
type stateSaver struct {
	mu    sync.Mutex
	state *config.State
	path  string
}

func (s *stateSaver) save(input pipeline.InputMode, view pipeline.ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.InputMode = input.String()
	s.state.ViewMode = view.String()
	if err := s.state.Save(s.path); err != nil {
		log.Warnf("saving state: %v", err)
	}
}

// executeCommand handles one-off commands that don't require the pipeline
// to be running, such as listing available audio devices.
func executeCommand(cfg *config.Config, state *config.State) error {
	switch cfg.Command {
	case "list":
		if !cfg.UI.Enabled {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()
			return audio.ListDevices(os.Stdout)
		}

		dev, err := tui.PickDevice(cfg.Audio.InputDevice)
		if err != nil {
			return err
		}
		if dev == nil {
			return nil
		}
		id := dev.ID
		state.InputDevice = &id
		if err := state.Save(cfg.StateFile()); err != nil {
			return err
		}
		fmt.Printf("Using [%d] %s for microphone capture.\n", dev.ID, dev.Name)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}
