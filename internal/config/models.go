package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/remote"
)

// Config represents the application configuration
type Config struct {
	ServerPort       int           `json:"server_port" yaml:"server_port"`
	LogLevel         string        `json:"log_level" yaml:"log_level"`
	RegistryPort     int           `json:"registry_port" yaml:"registry_port"`
	PollInterval     time.Duration `json:"poll_interval" yaml:"poll_interval"`
	DiscoveryBackoff time.Duration `json:"discovery_backoff" yaml:"discovery_backoff"`
	TopologyInterval time.Duration `json:"topology_interval" yaml:"topology_interval"`
	RefreshInterval  time.Duration `json:"refresh_interval" yaml:"refresh_interval"`
	StatusTimeout    time.Duration `json:"status_timeout" yaml:"status_timeout"`
	RemoteTimeout    time.Duration `json:"remote_timeout" yaml:"remote_timeout"`

	Inspection InspectionConfig `json:"inspection" yaml:"inspection"`
}

// InspectionConfig is the initial configuration pushed to every stage.
type InspectionConfig struct {
	ShowBounds        bool `json:"show_bounds" yaml:"show_bounds"`
	ShowBaseline      bool `json:"show_baseline" yaml:"show_baseline"`
	ShowPopups        bool `json:"show_popups" yaml:"show_popups"`
	AutoRefresh       bool `json:"auto_refresh" yaml:"auto_refresh"`
	AnimationsEnabled bool `json:"animations_enabled" yaml:"animations_enabled"`
}

// Stage returns the stage configuration, refreshing nodes every
// refreshInterval.
func (c InspectionConfig) Stage(refreshInterval time.Duration) model.Configuration {
	return model.Configuration{
		ShowBounds:        c.ShowBounds,
		ShowBaseline:      c.ShowBaseline,
		ShowPopups:        c.ShowPopups,
		AutoRefresh:       c.AutoRefresh,
		AnimationsEnabled: c.AnimationsEnabled,
		RefreshInterval:   refreshInterval,
	}
}

// Keys settable with Set.
var Keys = []string{
	"server_port",
	"log_level",
	"registry_port",
	"poll_interval",
	"discovery_backoff",
	"topology_interval",
	"refresh_interval",
	"status_timeout",
	"remote_timeout",
	"inspection.show_bounds",
	"inspection.show_baseline",
	"inspection.show_popups",
	"inspection.auto_refresh",
	"inspection.animations_enabled",
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/scenicview/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "scenicview", "config.yaml"), nil
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = defaultPath
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	// Try to read config file
	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			// Config file not found, create it with defaults
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Int("server_port", m.config.ServerPort).
		Int("registry_port", m.config.RegistryPort).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		ServerPort:       8558,
		LogLevel:         "info",
		RegistryPort:     remote.BasePort,
		PollInterval:     500 * time.Millisecond,
		DiscoveryBackoff: 50 * time.Millisecond,
		TopologyInterval: 500 * time.Millisecond,
		RefreshInterval:  500 * time.Millisecond,
		StatusTimeout:    10 * time.Second,
		RemoteTimeout:    5 * time.Second,
		Inspection: InspectionConfig{
			ShowPopups:        true,
			AutoRefresh:       true,
			AnimationsEnabled: true,
		},
	}
}

// load reads the configuration from disk. Keys missing from the file
// keep their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port %d", c.ServerPort)
	}
	if c.RegistryPort <= 0 || c.RegistryPort > 65535 {
		return fmt.Errorf("invalid registry_port %d", c.RegistryPort)
	}
	intervals := map[string]time.Duration{
		"poll_interval":     c.PollInterval,
		"discovery_backoff": c.DiscoveryBackoff,
		"topology_interval": c.TopologyInterval,
		"refresh_interval":  c.RefreshInterval,
		"status_timeout":    c.StatusTimeout,
		"remote_timeout":    c.RemoteTimeout,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("invalid %s %s: must be positive", key, d)
		}
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	// Return a copy to prevent external modification
	cfg := *m.config
	return &cfg
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	log := logger.WithComponent("config")
	log.Debug().Str("path", m.configPath).Msg("Saving config")

	// Ensure the directory exists
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return fmt.Errorf("failed to write config: %w", err)
	}

	log.Info().Str("path", m.configPath).Msg("Config saved successfully")
	return nil
}

// Update replaces and saves the configuration
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetInspection stores the stage configuration so the next inspector
// starts with it.
func (m *Manager) SetInspection(c model.Configuration) error {
	cfg := m.Get()
	cfg.Inspection = InspectionConfig{
		ShowBounds:        c.ShowBounds,
		ShowBaseline:      c.ShowBaseline,
		ShowPopups:        c.ShowPopups,
		AutoRefresh:       c.AutoRefresh,
		AnimationsEnabled: c.AnimationsEnabled,
	}
	if c.RefreshInterval > 0 {
		cfg.RefreshInterval = c.RefreshInterval
	}
	return m.Update(cfg)
}

// Set parses value for key and stores it without saving.
func (m *Manager) Set(key, value string) error {
	cfg := m.Get()
	if err := cfg.set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "server_port", "registry_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port number: %s", value)
		}
		if key == "server_port" {
			c.ServerPort = port
		} else {
			c.RegistryPort = port
		}
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		c.LogLevel = value
	case "poll_interval", "discovery_backoff", "topology_interval", "refresh_interval", "status_timeout", "remote_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		*c.duration(key) = d
	case "inspection.show_bounds", "inspection.show_baseline", "inspection.show_popups",
		"inspection.auto_refresh", "inspection.animations_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		*c.flag(key) = b
	default:
		return fmt.Errorf("configuration key not found: %s", key)
	}
	return nil
}

func (c *Config) duration(key string) *time.Duration {
	switch key {
	case "poll_interval":
		return &c.PollInterval
	case "discovery_backoff":
		return &c.DiscoveryBackoff
	case "topology_interval":
		return &c.TopologyInterval
	case "refresh_interval":
		return &c.RefreshInterval
	case "status_timeout":
		return &c.StatusTimeout
	case "remote_timeout":
		return &c.RemoteTimeout
	}
	return nil
}

func (c *Config) flag(key string) *bool {
	switch key {
	case "inspection.show_bounds":
		return &c.Inspection.ShowBounds
	case "inspection.show_baseline":
		return &c.Inspection.ShowBaseline
	case "inspection.show_popups":
		return &c.Inspection.ShowPopups
	case "inspection.auto_refresh":
		return &c.Inspection.AutoRefresh
	case "inspection.animations_enabled":
		return &c.Inspection.AnimationsEnabled
	}
	return nil
}

// Value returns the value of key, formatted for display.
func (m *Manager) Value(key string) (string, error) {
	cfg := m.Get()
	switch key {
	case "server_port":
		return strconv.Itoa(cfg.ServerPort), nil
	case "registry_port":
		return strconv.Itoa(cfg.RegistryPort), nil
	case "log_level":
		return cfg.LogLevel, nil
	}
	if d := cfg.duration(key); d != nil {
		return d.String(), nil
	}
	if b := cfg.flag(key); b != nil {
		return strconv.FormatBool(*b), nil
	}
	return "", fmt.Errorf("configuration key not found: %s", key)
}

// ApplyOverrides copies every key explicitly set in v, typically bound
// command-line flags, over the file values. Overrides are not saved.
func (m *Manager) ApplyOverrides(v *viper.Viper) error {
	for _, key := range Keys {
		if !v.IsSet(key) {
			continue
		}
		value := v.GetString(key)
		if value == "" || value == "0" || value == "0s" {
			continue
		}
		if err := m.Set(key, value); err != nil {
			return fmt.Errorf("failed to apply %s override: %w", key, err)
		}
	}
	return nil
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
