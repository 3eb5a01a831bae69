// Package config provides configuration management for the SSH T client.
// It handles loading, saving, and managing application settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/ipfinder"
	"github.com/yllada/ssht-client/speedtest"
)

// Host modes.
const (
	HostRemote = "remote"
	HostSim    = "sim"
)

// DefaultHostURL is where the host bridge listens by default.
const DefaultHostURL = "http://127.0.0.1:8765"

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	Host        HostConfig        `yaml:"host"`
	AutoConnect AutoConnectConfig `yaml:"autoconnect"`
	Stats       StatsConfig       `yaml:"stats"`
	API         APIConfig         `yaml:"api"`
	SpeedTest   speedtest.Options `yaml:"speedtest"`
	IPFinder    ipfinder.Options  `yaml:"ipfinder"`
	Log         LogConfig         `yaml:"log"`

	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// AutoReconnect restarts the tunnel when health checks keep failing.
	AutoReconnect bool `yaml:"auto_reconnect"`
}

// HostConfig selects the host the client drives.
type HostConfig struct {
	// Mode is "remote" (HTTP bridge) or "sim" (in-process simulator).
	Mode string `yaml:"mode"`
	// URL of the bridge in remote mode.
	URL string `yaml:"url"`
	// SimFile optionally replaces the simulator's built-in profiles.
	SimFile string `yaml:"sim_file,omitempty"`
}

// AutoConnectConfig holds auto-connect timings and candidate filters.
type AutoConnectConfig struct {
	autoconnect.Settings `yaml:",inline"`

	// ProbeURL is requested once a candidate connects.
	ProbeURL string `yaml:"probe_url"`
	// Categories limits candidates to these category ids; empty means all.
	Categories []int `yaml:"categories,omitempty"`
	// Type is "all", "ssh" or "v2ray".
	Type string `yaml:"type"`
}

// StatsConfig controls traffic sampling.
type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// APIConfig points at the sales and account API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level      string `yaml:"level"`
	File       bool   `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Common returns the logger settings for common.InitLogger.
func (l LogConfig) Common() common.LogConfig {
	return common.LogConfig{
		Level:       common.ParseLogLevel(l.Level),
		EnableFile:  l.File,
		MaxFileSize: l.MaxSizeMB,
		MaxBackups:  l.MaxBackups,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Mode: HostRemote,
			URL:  DefaultHostURL,
		},
		AutoConnect: AutoConnectConfig{
			Settings: autoconnect.DefaultSettings(),
			ProbeURL: common.ProbeURL,
			Type:     common.ConfigTypeAll,
		},
		Stats: StatsConfig{Interval: common.StatsInterval},
		API: APIConfig{
			BaseURL: common.APIBaseURL,
			Timeout: 20 * time.Second,
		},
		SpeedTest: speedtest.DefaultOptions(),
		IPFinder:  ipfinder.DefaultOptions(),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 5,
		},
		ShowNotifications: true,
		AutoReconnect:     false,
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration at path, writing defaults there if
// the file doesn't exist.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(path); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	// Missing keys keep their defaults.
	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: error parsing configuration: %v", common.ErrConfigLoad, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate verifies that configuration values are valid, falling back to
// defaults for values that are out of range.
func (c *Config) validate() error {
	def := DefaultConfig()

	switch c.Host.Mode {
	case HostRemote:
		if c.Host.URL == "" {
			c.Host.URL = def.Host.URL
		}
	case HostSim:
	default:
		return fmt.Errorf("unknown host mode %q", c.Host.Mode)
	}

	if c.AutoConnect.ConnectTimeout < 0 {
		c.AutoConnect.ConnectTimeout = def.AutoConnect.ConnectTimeout
	}
	if c.AutoConnect.ProbeTimeout <= 0 {
		c.AutoConnect.ProbeTimeout = def.AutoConnect.ProbeTimeout
	}
	if c.AutoConnect.PollInterval <= 0 {
		c.AutoConnect.PollInterval = def.AutoConnect.PollInterval
	}
	if c.AutoConnect.ProbeURL == "" {
		c.AutoConnect.ProbeURL = def.AutoConnect.ProbeURL
	}
	validTypes := []string{common.ConfigTypeAll, common.ConfigTypeSSH, common.ConfigTypeV2Ray}
	if !slices.Contains(validTypes, c.AutoConnect.Type) {
		c.AutoConnect.Type = common.ConfigTypeAll // Fallback to default
	}

	if c.Stats.Interval <= 0 {
		c.Stats.Interval = def.Stats.Interval
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = def.API.Timeout
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Log.Level) {
		c.Log.Level = def.Log.Level
	}
	return nil
}

// Save saves the configuration to the default file.
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to path.
func (c *Config) SaveTo(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Path returns the default config file location.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}
