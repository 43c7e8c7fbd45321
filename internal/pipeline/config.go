package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/perfsleuth/perfsleuth/internal/scheduler"
	"github.com/perfsleuth/perfsleuth/internal/types"
)

// Config holds pipeline settings for one run.
type Config struct {
	// Device selects the threshold column for gating and metric nodes.
	Device types.DeviceClass

	// BlockingMode excludes invalid findings from the approved set.
	BlockingMode bool

	// AdjustMode applies validator impact adjustments to the output.
	AdjustMode bool

	// StrictMode additionally blocks findings that carry any warning.
	StrictMode bool

	// Scheduler tunes task execution.
	Scheduler scheduler.Config
}

// DefaultConfig returns the default pipeline configuration: mobile
// thresholds, blocking and adjusting on, strict off.
func DefaultConfig() *Config {
	return &Config{
		Device:       types.DeviceMobile,
		BlockingMode: true,
		AdjustMode:   true,
		Scheduler:    scheduler.DefaultConfig(),
	}
}

// ConfigFile is the on-disk YAML shape (.perfsleuth/pipeline.yaml).
type ConfigFile struct {
	Device       string `yaml:"device"`
	BlockingMode *bool  `yaml:"blocking_mode"`
	AdjustMode   *bool  `yaml:"adjust_mode"`
	StrictMode   *bool  `yaml:"strict_mode"`

	Scheduler struct {
		BatchSize      int    `yaml:"batch_size"`
		BatchDelay     string `yaml:"batch_delay"`
		MaxAttempts    int    `yaml:"max_attempts"`
		InitialBackoff string `yaml:"initial_backoff"`
		MaxBackoff     string `yaml:"max_backoff"`
		MaxConcurrent  int    `yaml:"max_concurrent"`
		BreakerEnabled bool   `yaml:"breaker_enabled"`
	} `yaml:"scheduler"`
}

// LoadConfigFile reads the pipeline config, returning defaults when the
// file does not exist.
func LoadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cf.ToConfig()
}

// ToConfig converts the file shape into a Config, starting from
// defaults and overriding what the file sets.
func (cf *ConfigFile) ToConfig() (*Config, error) {
	cfg := DefaultConfig()

	if cf.Device != "" {
		d := types.DeviceClass(cf.Device)
		if !d.IsValid() {
			return nil, fmt.Errorf("invalid device class: %q", cf.Device)
		}
		cfg.Device = d
	}
	if cf.BlockingMode != nil {
		cfg.BlockingMode = *cf.BlockingMode
	}
	if cf.AdjustMode != nil {
		cfg.AdjustMode = *cf.AdjustMode
	}
	if cf.StrictMode != nil {
		cfg.StrictMode = *cf.StrictMode
	}

	if cf.Scheduler.BatchSize > 0 {
		cfg.Scheduler.BatchSize = cf.Scheduler.BatchSize
	}
	if cf.Scheduler.MaxAttempts > 0 {
		cfg.Scheduler.MaxAttempts = cf.Scheduler.MaxAttempts
	}
	if cf.Scheduler.MaxConcurrent > 0 {
		cfg.Scheduler.MaxConcurrent = cf.Scheduler.MaxConcurrent
	}
	cfg.Scheduler.BreakerEnabled = cf.Scheduler.BreakerEnabled

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cf.Scheduler.BatchDelay, "batch_delay", &cfg.Scheduler.BatchDelay},
		{cf.Scheduler.InitialBackoff, "initial_backoff", &cfg.Scheduler.InitialBackoff},
		{cf.Scheduler.MaxBackoff, "max_backoff", &cfg.Scheduler.MaxBackoff},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
