// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"visualizer/internal/log"
	"visualizer/internal/pipeline"
	"visualizer/pkg/bitint"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "config.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for DefaultPath in the working directory. If no file is found, it uses
// built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration. It is called after loading and again
// after command line flags are applied.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q is not one of debug, info, warn, error", ErrInvalid, c.LogLevel)
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device %d must be >= %d", ErrInvalid, c.Audio.InputDevice, MinDeviceID)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f must be between %d and %d", ErrInvalid, c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FrameSize < MinFrameSize || c.Audio.FrameSize > MaxFrameSize {
		return fmt.Errorf("%w: audio.frame_size %d must be between %d and %d", ErrInvalid, c.Audio.FrameSize, MinFrameSize, MaxFrameSize)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FrameSize) {
		lo, hi := bitint.Nearest(c.Audio.FrameSize)
		return fmt.Errorf("%w: audio.frame_size %d is not a power of two (try %d or %d)", ErrInvalid, c.Audio.FrameSize, lo, hi)
	}

	// Pipeline
	if c.Pipeline.TickInterval < MinTickInterval {
		return fmt.Errorf("%w: pipeline.tick_interval %s must be at least %s", ErrInvalid, c.Pipeline.TickInterval, MinTickInterval)
	}
	if _, err := pipeline.ParseInputMode(c.Pipeline.InputMode); err != nil {
		return fmt.Errorf("%w: pipeline.input_mode: %v", ErrInvalid, err)
	}
	if _, err := pipeline.ParseViewMode(c.Pipeline.ViewMode); err != nil {
		return fmt.Errorf("%w: pipeline.view_mode: %v", ErrInvalid, err)
	}

	// Transport
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("%w: transport.udp_target_address %q appears invalid (missing port?)", ErrInvalid, c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalid)
		}
	}
	if c.Transport.WebSocketEnabled {
		if c.Transport.WebSocketAddr == "" {
			return fmt.Errorf("%w: transport.websocket_addr must be set when WebSocket is enabled", ErrInvalid)
		}
		if c.Transport.WebSocketInterval <= 0 {
			return fmt.Errorf("%w: transport.websocket_interval must be positive when WebSocket is enabled", ErrInvalid)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr must be set when metrics are enabled", ErrInvalid)
	}
	if c.UI.Enabled && c.UI.RefreshInterval <= 0 {
		return fmt.Errorf("%w: ui.refresh_interval must be positive", ErrInvalid)
	}

	return nil
}

// applyEnvOverrides reads ENV_* variables on top of the file values.
// Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil && bVal {
			c.LogLevel = "debug"
			log.Debugf("configuration: overriding log_level from ENV_DEBUG")
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		log.Debugf("configuration: overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...} and ENV_PIPELINE_{...}

	// ENV_FRAME_SIZE
	if val, ok := os.LookupEnv("ENV_FRAME_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.FrameSize = n
			log.Debugf("configuration: overriding audio.frame_size from env: %d", n)
		} else {
			log.Warnf("configuration: ignoring ENV_FRAME_SIZE=%q: %v", val, err)
		}
	}
	// ENV_TICK_INTERVAL
	if val, ok := os.LookupEnv("ENV_TICK_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Pipeline.TickInterval = dur
			log.Debugf("configuration: overriding pipeline.tick_interval from env: %s", dur)
		} else {
			log.Warnf("configuration: ignoring ENV_TICK_INTERVAL=%q: %v", val, err)
		}
	}
	// ENV_INPUT_MODE
	if val, ok := os.LookupEnv("ENV_INPUT_MODE"); ok {
		c.Pipeline.InputMode = val
		log.Debugf("configuration: overriding pipeline.input_mode from env: %s", val)
	}
	// ENV_VIEW_MODE
	if val, ok := os.LookupEnv("ENV_VIEW_MODE"); ok {
		c.Pipeline.ViewMode = val
		log.Debugf("configuration: overriding pipeline.view_mode from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			log.Debugf("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		log.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			log.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}

	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			log.Debugf("configuration: overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		log.Debugf("configuration: overriding transport.websocket_addr from env: %s", val)
	}

	// ENV_METRICS_ADDR
	if val, ok := os.LookupEnv("ENV_METRICS_ADDR"); ok {
		c.Metrics.Enabled = val != ""
		c.Metrics.Addr = val
		log.Debugf("configuration: overriding metrics.addr from env: %s", val)
	}
}
