// Package config provides unified configuration loading for behavenet.
// It supports loading from YAML files and environment variables, replacing
// the interactive per-user setup of earlier versions with an explicit
// configuration object passed to callers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains all behavenet configuration settings.
type Config struct {
	// Dirs contains the base directories for data, results, and figures.
	Dirs DirConfig `json:"dirs" yaml:"dirs"`

	// Dataset describes the recording session being analyzed.
	Dataset DatasetConfig `json:"dataset" yaml:"dataset"`

	// Cache selects the results cache backend: "file" (default),
	// "sqlite", or "memory".
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// DirConfig holds the base directories used across the pipeline.
type DirConfig struct {
	// DataDir is the base directory for raw data files.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// SaveDir is the base directory for fitted models and cached results.
	SaveDir string `json:"save_dir" yaml:"save_dir"`

	// FigDir is the base directory for rendered figures and movies.
	FigDir string `json:"fig_dir" yaml:"fig_dir"`
}

// DatasetConfig describes a recording session.
type DatasetConfig struct {
	// Lab is the name of the experimenter or lab.
	Lab string `json:"lab" yaml:"lab"`

	// Expt is the name of the experiment.
	Expt string `json:"expt" yaml:"expt"`

	// Animal is the animal name.
	Animal string `json:"animal" yaml:"animal"`

	// Session is the session name.
	Session string `json:"session" yaml:"session"`

	// TrialSplits is the train;val;test;gap trial ratio, e.g. "8;1;1;0".
	TrialSplits string `json:"trial_splits" yaml:"trial_splits"`

	// XPixels and YPixels are the behavioral video frame dimensions.
	XPixels int `json:"x_pixels" yaml:"x_pixels"`
	YPixels int `json:"y_pixels" yaml:"y_pixels"`

	// InputChannels is the number of camera views.
	InputChannels int `json:"n_input_channels" yaml:"n_input_channels"`

	// FrameRate is the behavioral video frame rate in Hz. The neural bin
	// size is its reciprocal.
	FrameRate float64 `json:"frame_rate" yaml:"frame_rate"`

	// NeuralType is the neural data type: "spikes" or "ca".
	NeuralType string `json:"neural_type" yaml:"neural_type"`
}

// NeuralBinSize returns the width of one neural time bin in seconds.
func (d DatasetConfig) NeuralBinSize() float64 {
	if d.FrameRate <= 0 {
		return 0
	}
	return 1.0 / d.FrameRate
}

// CacheConfig selects and parameterizes the results cache.
type CacheConfig struct {
	// Backend is one of "file", "sqlite", or "memory".
	Backend string `json:"backend" yaml:"backend"`
}

// LoggingConfig configures behavenet's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			TrialSplits: "8;1;1;0",
			FrameRate:   40,
			NeuralType:  "spikes",
		},
		Cache: CacheConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.behavenet/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".behavenet", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand ${VAR} patterns in directory paths
	config.Dirs.DataDir = expandEnvVars(config.Dirs.DataDir)
	config.Dirs.SaveDir = expandEnvVars(config.Dirs.SaveDir)
	config.Dirs.FigDir = expandEnvVars(config.Dirs.FigDir)

	return config, nil
}

// Save writes the configuration as YAML to path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// DefaultPath returns the default config file location (~/.behavenet/config.yaml).
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, ".behavenet", "config.yaml"), nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validBackends := map[string]bool{"": true, "file": true, "sqlite": true, "memory": true}
	if !validBackends[c.Cache.Backend] {
		return fmt.Errorf("invalid cache backend: %s (valid: file, sqlite, memory, or empty for default)", c.Cache.Backend)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	validNeural := map[string]bool{"": true, "spikes": true, "ca": true}
	if !validNeural[c.Dataset.NeuralType] {
		return fmt.Errorf("invalid neural type: %s (valid: spikes or ca)", c.Dataset.NeuralType)
	}

	if c.Dataset.FrameRate < 0 {
		return fmt.Errorf("frame_rate must be non-negative, got %f", c.Dataset.FrameRate)
	}

	if c.Dataset.TrialSplits != "" {
		if _, err := ParseTrialSplits(c.Dataset.TrialSplits); err != nil {
			return err
		}
	}

	return nil
}

// TrialSplits holds the relative trial counts for each data split.
// Gap trials separate the splits and are discarded.
type TrialSplits struct {
	Train int
	Val   int
	Test  int
	Gap   int
}

// ParseTrialSplits parses a "train;val;test;gap" ratio string, e.g. "8;1;1;0".
func ParseTrialSplits(s string) (TrialSplits, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 4 {
		return TrialSplits{}, fmt.Errorf("trial_splits must have four ;-separated fields, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return TrialSplits{}, fmt.Errorf("trial_splits field %d: %w", i, err)
		}
		if n < 0 {
			return TrialSplits{}, fmt.Errorf("trial_splits field %d must be non-negative, got %d", i, n)
		}
		vals[i] = n
	}
	ts := TrialSplits{Train: vals[0], Val: vals[1], Test: vals[2], Gap: vals[3]}
	if ts.Train+ts.Val+ts.Test == 0 {
		return TrialSplits{}, fmt.Errorf("trial_splits must have at least one non-gap trial, got %q", s)
	}
	return ts, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("BEHAVENET_DATA_DIR"); v != "" {
		config.Dirs.DataDir = v
	}
	if v := os.Getenv("BEHAVENET_SAVE_DIR"); v != "" {
		config.Dirs.SaveDir = v
	}
	if v := os.Getenv("BEHAVENET_FIG_DIR"); v != "" {
		config.Dirs.FigDir = v
	}
	if v := os.Getenv("BEHAVENET_CACHE_BACKEND"); v != "" {
		config.Cache.Backend = v
	}
	if v := os.Getenv("BEHAVENET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("BEHAVENET_FRAME_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Dataset.FrameRate = f
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
