// Package cmd parses the command line into a configuration.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"visualizer/internal/config"
	"visualizer/pkg/build"
)

// Invocation is the result of parsing the command line.
type Invocation struct {
	Config *config.Config
	State  *config.State // Remembered selections, already applied to Config.
}

// override copies one flag's value from the parsed flags into the loaded
// configuration.
type override func(dst, flags *config.Config)

// ParseArgs builds the configuration from defaults, the config file, ENV_*
// variables, the state file and finally the flags set on the command line. It
// returns nil without error when cobra handled the invocation itself (--help,
// --version).
func ParseArgs(args []string) (*Invocation, error) {
	buildInfo := build.GetBuildFlags()
	flags := config.NewConfig()

	var (
		configPath string
		verbose    bool
		headless   bool
		result     *Invocation
	)

	overrides := map[string]override{
		"log-level":   func(d, f *config.Config) { d.LogLevel = f.LogLevel },
		"log-file":    func(d, f *config.Config) { d.LogFile = f.LogFile },
		"state":       func(d, f *config.Config) { d.StatePath = f.StatePath },
		"device":      func(d, f *config.Config) { d.Audio.InputDevice = f.Audio.InputDevice },
		"sample-rate": func(d, f *config.Config) { d.Audio.SampleRate = f.Audio.SampleRate },
		"frame-size":  func(d, f *config.Config) { d.Audio.FrameSize = f.Audio.FrameSize },
		"low-latency": func(d, f *config.Config) { d.Audio.LowLatency = f.Audio.LowLatency },
		"interval":    func(d, f *config.Config) { d.Pipeline.TickInterval = f.Pipeline.TickInterval },
		"input":       func(d, f *config.Config) { d.Pipeline.InputMode = f.Pipeline.InputMode },
		"view":        func(d, f *config.Config) { d.Pipeline.ViewMode = f.Pipeline.ViewMode },
		"record":      func(d, f *config.Config) { d.Recording.Enabled = f.Recording.Enabled },
		"output": func(d, f *config.Config) {
			d.Recording.OutputFile = f.Recording.OutputFile
			d.Recording.Enabled = true
		},
		"udp": func(d, f *config.Config) {
			d.Transport.UDPTargetAddress = f.Transport.UDPTargetAddress
			d.Transport.UDPEnabled = true
		},
		"ws": func(d, f *config.Config) {
			d.Transport.WebSocketAddr = f.Transport.WebSocketAddr
			d.Transport.WebSocketEnabled = true
		},
		"metrics": func(d, f *config.Config) {
			d.Metrics.Addr = f.Metrics.Addr
			d.Metrics.Enabled = true
		},
		"log-spectra": func(d, f *config.Config) { d.Transport.LogEnabled = f.Transport.LogEnabled },
		"headless":    func(d, _ *config.Config) { d.UI.Enabled = !headless },
		"verbose": func(d, _ *config.Config) {
			if verbose {
				d.LogLevel = "debug"
			}
		},
	}

	// load runs after cobra parsed the flags, so file values sit below the
	// command line.
	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("state") {
			cfg.StatePath = flags.StatePath
		}
		state, err := config.LoadState(cfg.StateFile())
		if err != nil {
			return err
		}
		state.Apply(cfg)

		cmd.Flags().Visit(func(f *pflag.Flag) {
			if apply, ok := overrides[f.Name]; ok {
				apply(cfg, flags)
			}
		})
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid command line: %w", err)
		}

		cfg.Command = command
		result = &Invocation{Config: cfg, State: state}
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "")
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s %s\n", buildInfo.Name, buildInfo.String()))

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List input devices and choose the microphone (plain text with --headless)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "list")
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()

	// General
	pf.StringVarP(&configPath, "config", "f", "",
		"Path to a YAML config file (default ./"+config.DefaultPath+" when present)")
	pf.StringVar(&flags.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error")
	pf.BoolVarP(&verbose, "verbose", "v", false,
		"Shorthand for --log-level=debug")
	pf.StringVar(&flags.LogFile, "log-file", "",
		"Write logs to this file (logs are discarded while the UI runs otherwise)")
	pf.StringVar(&flags.StatePath, "state", "",
		"File remembering the last input, view and device (default in the user config dir)")

	// Audio Device Configuration
	pf.IntVarP(&flags.Audio.InputDevice, "device", "d", config.DefaultDeviceID,
		"Microphone device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&flags.Audio.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.Audio.FrameSize, "frame-size", "n", config.DefaultFrameSize,
		"Samples per analysed frame (power of 2)")
	pf.BoolVarP(&flags.Audio.LowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency device buffers")

	// Pipeline Configuration
	pf.DurationVarP(&flags.Pipeline.TickInterval, "interval", "i", config.DefaultTickInterval,
		"Spectrum update interval")
	pf.StringVar(&flags.Pipeline.InputMode, "input", config.DefaultInputMode,
		"Initial input: none, microphone, loopback")
	pf.StringVar(&flags.Pipeline.ViewMode, "view", config.DefaultViewMode,
		"Initial view: none, bars, wave")
	pf.BoolVar(&headless, "headless", false,
		"Run without the terminal UI")

	// Recording Configuration
	pf.BoolVarP(&flags.Recording.Enabled, "record", "r", false,
		"Record analysed frames to a WAV file")
	pf.StringVarP(&flags.Recording.OutputFile, "output", "o", "",
		"Recording file name (implies --record). Default is "+config.DefaultOutputDir+"/capture-YYYYMMDD-HHMMSS.wav")

	// Streaming Configuration
	pf.StringVar(&flags.Transport.UDPTargetAddress, "udp", config.DefaultUDPTargetAddress,
		"Send spectra as UDP packets: --udp or --udp=host:port")
	pf.StringVar(&flags.Transport.WebSocketAddr, "ws", config.DefaultWebSocketAddr,
		"Serve spectra to WebSocket clients: --ws or --ws=addr")
	pf.StringVar(&flags.Metrics.Addr, "metrics", config.DefaultMetricsAddr,
		"Serve Prometheus metrics: --metrics or --metrics=addr")
	pf.BoolVar(&flags.Transport.LogEnabled, "log-spectra", false,
		"Log a summary of every spectrum at debug level")

	// Flags that take an address also work bare: --udp enables the default.
	for _, name := range []string{"udp", "ws", "metrics"} {
		pf.Lookup(name).NoOptDefVal = pf.Lookup(name).DefValue
	}

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return result, nil
}
