// Package config loads the pickdesk TOML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/pickdesk/internal/filter"
)

// DirName is the per-user directory holding config, preferences and logs.
const DirName = ".pickdesk"

// Config represents the application configuration.
type Config struct {
	// Batch server connection
	Server ServerConfig `toml:"server"`

	// Realtime socket reconnection
	Realtime RealtimeConfig `toml:"realtime"`

	// Undo toast countdown
	Toast ToastConfig `toml:"toast"`

	// Initial list filter
	Filters filter.Values `toml:"filters"`

	// Local preference store
	Prefs PrefsConfig `toml:"prefs"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// ServerConfig contains batch server settings.
type ServerConfig struct {
	BaseURL    string  `toml:"base_url"`    // e.g. "http://localhost:8000"
	BatchID    string  `toml:"batch_id"`    // Batch to display
	Username   string  `toml:"username"`    // Basic auth user (optional)
	Password   string  `toml:"password"`    // Basic auth password (optional)
	RateLimit  float64 `toml:"rate_limit"`  // Requests per second (0 = unlimited)
	MaxRetries int     `toml:"max_retries"` // Retries for failed GET requests
}

// RealtimeConfig contains reconnect backoff settings.
type RealtimeConfig struct {
	BackoffFloor   string `toml:"backoff_floor"`   // First reconnect delay (e.g., "1s")
	BackoffCeiling string `toml:"backoff_ceiling"` // Maximum reconnect delay (e.g., "10s")
}

// ToastConfig contains undo toast settings.
type ToastConfig struct {
	Ticks int    `toml:"ticks"` // Countdown length in ticks
	Tick  string `toml:"tick"`  // Tick length (e.g., "1s")
}

// PrefsConfig contains preference store settings.
type PrefsConfig struct {
	DBPath string `toml:"db_path"` // Empty means ~/.pickdesk/prefs.db
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:    "http://localhost:8000",
			RateLimit:  20,
			MaxRetries: 2,
		},
		Realtime: RealtimeConfig{
			BackoffFloor:   "1s",
			BackoffCeiling: "10s",
		},
		Toast: ToastConfig{
			Ticks: 5,
			Tick:  "1s",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Dir returns the per-user pickdesk directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default path.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from path. Values missing from the file
// keep their defaults; a missing file yields the default config.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server base URL %q", c.Server.BaseURL)
	}
	if c.Server.BatchID == "" {
		return fmt.Errorf("batch id is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.Server.RateLimit)
	}
	if c.Server.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %d", c.Server.MaxRetries)
	}

	floor, err := c.BackoffFloor()
	if err != nil {
		return fmt.Errorf("invalid backoff floor %q: %w", c.Realtime.BackoffFloor, err)
	}
	ceiling, err := c.BackoffCeiling()
	if err != nil {
		return fmt.Errorf("invalid backoff ceiling %q: %w", c.Realtime.BackoffCeiling, err)
	}
	if floor <= 0 || ceiling < floor {
		return fmt.Errorf("backoff must satisfy 0 < floor <= ceiling, got %s and %s", floor, ceiling)
	}

	if c.Toast.Ticks <= 0 {
		return fmt.Errorf("toast ticks must be positive: %d", c.Toast.Ticks)
	}
	if tick, err := c.ToastTick(); err != nil || tick <= 0 {
		return fmt.Errorf("invalid toast tick %q", c.Toast.Tick)
	}

	return nil
}

// BackoffFloor returns the first reconnect delay.
func (c *Config) BackoffFloor() (time.Duration, error) {
	return time.ParseDuration(c.Realtime.BackoffFloor)
}

// BackoffCeiling returns the maximum reconnect delay.
func (c *Config) BackoffCeiling() (time.Duration, error) {
	return time.ParseDuration(c.Realtime.BackoffCeiling)
}

// ToastTick returns the toast tick length.
func (c *Config) ToastTick() (time.Duration, error) {
	return time.ParseDuration(c.Toast.Tick)
}

// PrefsPath returns the preference database path.
func (c *Config) PrefsPath() (string, error) {
	if c.Prefs.DBPath != "" {
		return c.Prefs.DBPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prefs.db"), nil
}
