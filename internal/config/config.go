// Package config handles thermodash configuration loading and
// validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for thermodash.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Server settings for the daemon
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Sampler settings for the ingest loop
	Sampler SamplerConfig `yaml:"sampler" mapstructure:"sampler"`

	// Actuator settings
	Actuators ActuatorsConfig `yaml:"actuators" mapstructure:"actuators"`

	// Refresh settings for the dashboard
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global thermodash settings.
type GlobalConfig struct {
	// DataDir is where thermodash stores its data (default:
	// ~/.local/share/thermodash).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default:
	// ~/.config/thermodash).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The daemon's log tail
	// endpoint serves this file.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// ServerConfig contains HTTP daemon settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// SensorNames maps sensor IDs to display names.
	SensorNames map[string]string `yaml:"sensor_names" mapstructure:"sensor_names"`
}

// SamplerConfig contains ingest loop settings.
type SamplerConfig struct {
	// Interval between samples.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Sensors lists the sensor IDs to sample.
	Sensors []string `yaml:"sensors" mapstructure:"sensors"`

	// Simulate replaces hardware sensors with a random walk.
	Simulate bool `yaml:"simulate" mapstructure:"simulate"`

	// ThermostatSensor names the sensor driving auto-mode actuators.
	ThermostatSensor string `yaml:"thermostat_sensor" mapstructure:"thermostat_sensor"`
}

// ActuatorsConfig contains actuator settings.
type ActuatorsConfig struct {
	// Relays lists relay actuator names to register.
	Relays []string `yaml:"relays" mapstructure:"relays"`

	// DefaultSetpoint is the initial thermostat target for new relays.
	DefaultSetpoint float64 `yaml:"default_setpoint" mapstructure:"default_setpoint"`
}

// RefreshConfig contains dashboard refresh settings.
type RefreshConfig struct {
	// Interval between data refresh cycles.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// LogTailInterval between log pane refreshes. Zero disables the
	// log pane loop.
	LogTailInterval time.Duration `yaml:"log_tail_interval" mapstructure:"log_tail_interval"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// ServerURL is the daemon base URL the dashboard talks to.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`

	// Timezone is the IANA zone used for navigation keys. Empty uses
	// the host's local zone.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "thermodash"),
			ConfigDir: filepath.Join(homeDir, ".config", "thermodash"),
		},
		Database: DatabaseConfig{
			Path: "", // Will be set to DataDir/thermodash.db
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Server: ServerConfig{
			Addr: ":8093",
		},
		Sampler: SamplerConfig{
			Interval: 60 * time.Second,
			Sensors:  []string{"DHT11_01"},
			Simulate: true,
		},
		Actuators: ActuatorsConfig{
			DefaultSetpoint: 22,
		},
		Refresh: RefreshConfig{
			Interval:        10 * time.Second,
			LogTailInterval: 5 * time.Second,
		},
		TUI: TUIConfig{
			ServerURL: "http://localhost:8093",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Sampler.Interval < time.Second {
		return fmt.Errorf("sampler.interval must be at least 1s")
	}
	if len(c.Sampler.Sensors) == 0 {
		return fmt.Errorf("sampler.sensors must name at least one sensor")
	}

	if c.Refresh.Interval < time.Second {
		return fmt.Errorf("refresh.interval must be at least 1s")
	}
	if c.Refresh.LogTailInterval < 0 {
		return fmt.Errorf("refresh.log_tail_interval must not be negative")
	}

	if c.TUI.ServerURL == "" {
		return fmt.Errorf("tui.server_url is required")
	}
	if c.TUI.Timezone != "" {
		if _, err := time.LoadLocation(c.TUI.Timezone); err != nil {
			return fmt.Errorf("tui.timezone: %w", err)
		}
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "thermodash.db")
}

// LogFilePath returns the log file path, defaulting under DataDir.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.DataDir, "thermodashd.log")
}
