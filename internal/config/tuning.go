package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the engine parameters. Every field is optional; the
// Get* methods return the built-in default for fields left unset, so
// partial files are safe.
type TuningConfig struct {
	// Zone params
	StalenessThreshold *uint32 `json:"staleness_threshold,omitempty"` // ticks

	// Estimator params
	MaxSampleAge    *uint32  `json:"max_sample_age,omitempty"` // ticks
	MinAnchors      *int     `json:"min_anchors,omitempty"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	Tolerance       *float64 `json:"tolerance,omitempty"`
	Damping         *float64 `json:"damping,omitempty"`
	SmoothingAlpha  *float64 `json:"smoothing_alpha,omitempty"`
	MinAnchorSpread *float64 `json:"min_anchor_spread,omitempty"`

	// Recorder params
	RecorderFlushInterval *string `json:"recorder_flush_interval,omitempty"` // duration string like "2s"
	RecorderBufferSize    *int    `json:"recorder_buffer_size,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.MinAnchors != nil && *c.MinAnchors < 3 {
		return fmt.Errorf("min_anchors must be at least 3, got %d", *c.MinAnchors)
	}
	if c.MaxIterations != nil && *c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}
	if c.Tolerance != nil && *c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %f", *c.Tolerance)
	}
	if c.Damping != nil && *c.Damping < 0 {
		return fmt.Errorf("damping must be non-negative, got %f", *c.Damping)
	}
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
		}
	}
	if c.RecorderFlushInterval != nil && *c.RecorderFlushInterval != "" {
		if _, err := time.ParseDuration(*c.RecorderFlushInterval); err != nil {
			return fmt.Errorf("invalid recorder_flush_interval '%s': %w", *c.RecorderFlushInterval, err)
		}
	}
	if c.RecorderBufferSize != nil && *c.RecorderBufferSize <= 0 {
		return fmt.Errorf("recorder_buffer_size must be positive, got %d", *c.RecorderBufferSize)
	}
	return nil
}

// GetStalenessThreshold returns the staleness_threshold value or the default.
func (c *TuningConfig) GetStalenessThreshold() uint32 {
	if c.StalenessThreshold == nil {
		return 5000
	}
	return *c.StalenessThreshold
}

// GetMaxSampleAge returns the max_sample_age value or the default.
func (c *TuningConfig) GetMaxSampleAge() uint32 {
	if c.MaxSampleAge == nil {
		return 5000
	}
	return *c.MaxSampleAge
}

// GetMinAnchors returns the min_anchors value or the default.
func (c *TuningConfig) GetMinAnchors() int {
	if c.MinAnchors == nil {
		return 3
	}
	return *c.MinAnchors
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 20
	}
	return *c.MaxIterations
}

// GetTolerance returns the tolerance value or the default.
func (c *TuningConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return 1e-3
	}
	return *c.Tolerance
}

// GetDamping returns the damping value or the default.
func (c *TuningConfig) GetDamping() float64 {
	if c.Damping == nil {
		return 1e-3
	}
	return *c.Damping
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.5
	}
	return *c.SmoothingAlpha
}

// GetMinAnchorSpread returns the min_anchor_spread value or the default.
func (c *TuningConfig) GetMinAnchorSpread() float64 {
	if c.MinAnchorSpread == nil {
		return 1e-3
	}
	return *c.MinAnchorSpread
}

// GetRecorderFlushInterval parses and returns the recorder flush interval.
func (c *TuningConfig) GetRecorderFlushInterval() time.Duration {
	if c.RecorderFlushInterval == nil || *c.RecorderFlushInterval == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.RecorderFlushInterval)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetRecorderBufferSize returns the recorder_buffer_size value or the default.
func (c *TuningConfig) GetRecorderBufferSize() int {
	if c.RecorderBufferSize == nil {
		return 1024
	}
	return *c.RecorderBufferSize
}
