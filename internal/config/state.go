package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// State holds user preferences remembered between runs. It is written when the
// input or view mode changes and read at start-up, where it takes precedence
// over the configured defaults but not over command line flags.
type State struct {
	InputMode   string `yaml:"input_mode,omitempty"`
	ViewMode    string `yaml:"view_mode,omitempty"`
	InputDevice *int   `yaml:"input_device,omitempty"` // Chosen microphone; nil means unset.
}

const stateDirName = "visualizer"

// DefaultStatePath returns the state file location inside the user config
// directory, falling back to the working directory.
func DefaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "state.yaml"
	}
	return filepath.Join(dir, stateDirName, "state.yaml")
}

// StateFile returns the configured state path or the default one.
func (c *Config) StateFile() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	return DefaultStatePath()
}

// LoadState reads the state file at path. A missing file is not an error and
// yields an empty State.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &st, nil
}

// Save writes the state to path, creating parent directories. The file is
// replaced atomically so a crash never leaves a half-written state.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Apply copies remembered preferences onto cfg.
func (s *State) Apply(cfg *Config) {
	if s == nil {
		return
	}
	if s.InputMode != "" {
		cfg.Pipeline.InputMode = s.InputMode
	}
	if s.ViewMode != "" {
		cfg.Pipeline.ViewMode = s.ViewMode
	}
	if s.InputDevice != nil {
		cfg.Audio.InputDevice = *s.InputDevice
	}
}
