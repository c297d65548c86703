package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the spectrum pipeline.
const (
	// Default values for the pipeline configuration
	DefaultDeviceID     = MinDeviceID           // System default input device
	DefaultSampleRate   = 44100                 // CD-quality audio
	DefaultFrameSize    = 2048                  // Samples per analysed frame (power of 2)
	DefaultLowLatency   = false                 // Standard latency mode
	DefaultTickInterval = 20 * time.Millisecond // ~50 spectrum updates per second
	DefaultInputMode    = "none"                // Start silent until a source is chosen
	DefaultViewMode     = "bars"                // Classic bar view
	DefaultLogLevel     = "info"
	DefaultFormat       = "wav" // WAV file format for recordings
	DefaultOutputDir    = "./recordings"
	DefaultUIRefresh    = 33 * time.Millisecond // ~30 fps terminal redraw

	// Transport defaults
	DefaultUDPTargetAddress  = "127.0.0.1:9090"
	DefaultUDPSendInterval   = 33 * time.Millisecond
	DefaultWebSocketAddr     = ":8080"
	DefaultWebSocketInterval = 33 * time.Millisecond
	DefaultMetricsAddr       = ":9100"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinFrameSize    = 16     // Smallest frame that still yields a useful spectrum
	MaxFrameSize    = 32768  // Largest validated frame (power of 2)
	MinTickInterval = time.Millisecond
)

// Config holds all runtime configuration options. It is loaded from YAML,
// adjusted by ENV_* variables and finally by command line flags.
type Config struct {
	LogLevel  string          `yaml:"log_level"`  // Logging level (debug, info, warn, error).
	LogFile   string          `yaml:"log_file"`   // Log destination while the terminal UI owns the screen.
	StatePath string          `yaml:"state_path"` // Where last-used input/view modes are remembered ("" for the user config dir).
	Command   string          `yaml:"-"`          // One-off command to execute instead of running the pipeline (e.g. "list").
	Audio     AudioConfig     `yaml:"audio"`      // Capture and frame settings.
	Pipeline  PipelineConfig  `yaml:"pipeline"`   // Tick loop and mode settings.
	Recording RecordingConfig `yaml:"recording"`  // WAV tap of analysed frames.
	Transport TransportConfig `yaml:"transport"`  // Spectrum streaming.
	Metrics   MetricsConfig   `yaml:"metrics"`    // Prometheus endpoint.
	UI        UIConfig        `yaml:"ui"`         // Terminal renderer.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice int     `yaml:"input_device"` // PortAudio device index for microphone capture (-1 for default).
	SampleRate  float64 `yaml:"sample_rate"`  // Capture sample rate in Hz. Informational for the transform.
	FrameSize   int     `yaml:"frame_size"`   // Samples per analysed frame N; must be a power of 2.
	LowLatency  bool    `yaml:"low_latency"`  // Request low latency settings from the device.
}

// PipelineConfig holds settings for the fixed-rate tick loop.
type PipelineConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"` // Interval between spectrum updates.
	InputMode    string        `yaml:"input_mode"`    // none, microphone, loopback.
	ViewMode     string        `yaml:"view_mode"`     // none, bars, wave.
}

// RecordingConfig holds settings for the WAV tap.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Write every analysed frame to a WAV file.
	OutputDir  string `yaml:"output_dir"`  // Directory for generated file names.
	OutputFile string `yaml:"output_file"` // Explicit output path; generated when empty.
}

// TransportConfig holds settings related to streaming published spectra.
type TransportConfig struct {
	UDPEnabled        bool          `yaml:"udp_enabled"`        // Send spectra as binary UDP packets.
	UDPTargetAddress  string        `yaml:"udp_target_address"` // host:port for UDP packets.
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`  // Serve spectra to WebSocket clients.
	WebSocketAddr     string        `yaml:"websocket_addr"`     // Listen address for the WebSocket server.
	WebSocketInterval time.Duration `yaml:"websocket_interval"` // Interval between WebSocket frames.
	LogEnabled        bool          `yaml:"log_enabled"`        // Log a one-line summary of each spectrum at debug level.
}

// MetricsConfig holds settings for the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// UIConfig holds settings for the terminal renderer.
type UIConfig struct {
	Enabled         bool          `yaml:"enabled"`          // Run the terminal UI; headless otherwise.
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Redraw interval.
}

// NewConfig creates a new Config instance with default values.
// This is the base configuration before a config file, environment
// variables or command line flags are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice: DefaultDeviceID,
			SampleRate:  DefaultSampleRate,
			FrameSize:   DefaultFrameSize,
			LowLatency:  DefaultLowLatency,
		},
		Pipeline: PipelineConfig{
			TickInterval: DefaultTickInterval,
			InputMode:    DefaultInputMode,
			ViewMode:     DefaultViewMode,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
		},
		Transport: TransportConfig{
			UDPTargetAddress:  DefaultUDPTargetAddress,
			UDPSendInterval:   DefaultUDPSendInterval,
			WebSocketAddr:     DefaultWebSocketAddr,
			WebSocketInterval: DefaultWebSocketInterval,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
		UI: UIConfig{
			Enabled:         true,
			RefreshInterval: DefaultUIRefresh,
		},
	}
}
