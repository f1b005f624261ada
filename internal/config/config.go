package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pilotguru/sensorlog/internal/clock"
)

// EnvPrefix prefixes environment overrides, e.g. SENSORLOG_OUTPUT_DIRECTORY.
const EnvPrefix = "SENSORLOG"

// ErrExists is returned by WriteDefault when the target file already exists.
var ErrExists = errors.New("config file already exists")

type OutputConfig struct {
	Directory     string `mapstructure:"directory" yaml:"directory"`
	SessionPrefix string `mapstructure:"session_prefix" yaml:"session_prefix"`
}

type ClockConfig struct {
	// Domain of camera frame timestamps.
	FrameDomain string `mapstructure:"frame_domain" yaml:"frame_domain"`
	// Domain of gyroscope, accelerometer and location timestamps.
	SensorDomain  string `mapstructure:"sensor_domain" yaml:"sensor_domain"`
	WarmupSamples int    `mapstructure:"warmup_samples" yaml:"warmup_samples"`
}

type StatusConfig struct {
	FreeSpaceInterval time.Duration `mapstructure:"free_space_interval" yaml:"free_space_interval"`
}

type SimulationConfig struct {
	GyroHz       float64       `mapstructure:"gyro_hz" yaml:"gyro_hz"`
	AccelHz      float64       `mapstructure:"accel_hz" yaml:"accel_hz"`
	LocationHz   float64       `mapstructure:"location_hz" yaml:"location_hz"`
	FrameFPS     float64       `mapstructure:"frame_fps" yaml:"frame_fps"`
	Duration     time.Duration `mapstructure:"duration" yaml:"duration"` // 0 records until interrupted
	FrameIDStart int64         `mapstructure:"frame_id_start" yaml:"frame_id_start"`
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"` // empty disables the endpoint
}

type Config struct {
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Clock      ClockConfig      `mapstructure:"clock" yaml:"clock"`
	Status     StatusConfig     `mapstructure:"status" yaml:"status"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

var defaultConfig = Config{
	Output: OutputConfig{
		Directory:     "~/sensorlog",
		SessionPrefix: "session",
	},
	Clock: ClockConfig{
		FrameDomain:   string(clock.Pausable),
		SensorDomain:  string(clock.AlwaysOn),
		WarmupSamples: clock.MinSamples,
	},
	Status: StatusConfig{
		FreeSpaceInterval: 2 * time.Second,
	},
	Simulation: SimulationConfig{
		GyroHz:       100,
		AccelHz:      100,
		LocationHz:   1,
		FrameFPS:     30,
		FrameIDStart: 0,
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

// DefaultPath returns $HOME/.config/sensorlog.yaml.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "sensorlog.yaml"
	}
	return filepath.Join(homeDir, ".config", "sensorlog.yaml")
}

// Load reads configFile on top of the defaults and applies SENSORLOG_*
// environment overrides. An empty configFile selects DefaultPath, which may
// be absent; an explicitly named file must exist.
func Load(configFile string) (*Config, error) {
	explicit := configFile != ""
	if !explicit {
		configFile = DefaultPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig
	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("output.session_prefix", d.Output.SessionPrefix)
	v.SetDefault("clock.frame_domain", d.Clock.FrameDomain)
	v.SetDefault("clock.sensor_domain", d.Clock.SensorDomain)
	v.SetDefault("clock.warmup_samples", d.Clock.WarmupSamples)
	v.SetDefault("status.free_space_interval", d.Status.FreeSpaceInterval)
	v.SetDefault("simulation.gyro_hz", d.Simulation.GyroHz)
	v.SetDefault("simulation.accel_hz", d.Simulation.AccelHz)
	v.SetDefault("simulation.location_hz", d.Simulation.LocationHz)
	v.SetDefault("simulation.frame_fps", d.Simulation.FrameFPS)
	v.SetDefault("simulation.duration", d.Simulation.Duration)
	v.SetDefault("simulation.frame_id_start", d.Simulation.FrameIDStart)
	v.SetDefault("metrics.listen_addr", d.Metrics.ListenAddr)
}

// Validate checks value ranges and clock domain names.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output.Directory) == "" {
		return fmt.Errorf("output.directory is required")
	}
	if c.Output.SessionPrefix == "" {
		return fmt.Errorf("output.session_prefix is required")
	}
	if strings.ContainsRune(c.Output.SessionPrefix, os.PathSeparator) {
		return fmt.Errorf("output.session_prefix %q must not contain a path separator", c.Output.SessionPrefix)
	}

	if _, err := clock.ParseDomain(c.Clock.FrameDomain); err != nil {
		return fmt.Errorf("clock.frame_domain: %w", err)
	}
	if _, err := clock.ParseDomain(c.Clock.SensorDomain); err != nil {
		return fmt.Errorf("clock.sensor_domain: %w", err)
	}
	if c.Clock.WarmupSamples < 0 {
		return fmt.Errorf("clock.warmup_samples must not be negative, got %d", c.Clock.WarmupSamples)
	}

	if c.Status.FreeSpaceInterval <= 0 {
		return fmt.Errorf("status.free_space_interval must be positive, got %s", c.Status.FreeSpaceInterval)
	}

	rates := []struct {
		key string
		val float64
	}{
		{"simulation.gyro_hz", c.Simulation.GyroHz},
		{"simulation.accel_hz", c.Simulation.AccelHz},
		{"simulation.location_hz", c.Simulation.LocationHz},
		{"simulation.frame_fps", c.Simulation.FrameFPS},
	}
	for _, r := range rates {
		if r.val <= 0 {
			return fmt.Errorf("%s must be positive, got %g", r.key, r.val)
		}
	}
	if c.Simulation.Duration < 0 {
		return fmt.Errorf("simulation.duration must not be negative, got %s", c.Simulation.Duration)
	}
	if c.Simulation.FrameIDStart < 0 {
		return fmt.Errorf("simulation.frame_id_start must not be negative, got %d", c.Simulation.FrameIDStart)
	}
	return nil
}

// FrameDomain returns the parsed frame clock domain. Validate must have
// succeeded.
func (c *Config) FrameDomain() clock.Domain {
	d, _ := clock.ParseDomain(c.Clock.FrameDomain)
	return d
}

// SensorDomain returns the parsed sensor clock domain. Validate must have
// succeeded.
func (c *Config) SensorDomain() clock.Domain {
	d, _ := clock.ParseDomain(c.Clock.SensorDomain)
	return d
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the built-in configuration to path, creating parent
// directories. An existing file is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
	}

	data, err := Default().Marshal()
	if err != nil {
		return fmt.Errorf("error encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
