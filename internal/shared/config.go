package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Client   ClientConfig   `toml:"client"`
	Sync     SyncConfig     `toml:"sync"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" (mattn/go-sqlite3, cgo) or "sqlite" (modernc.org/sqlite, pure Go).
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains backend HTTP server settings.
type ServerConfig struct {
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	SessionTTL    Duration `toml:"session_ttl"`
	PurgeSchedule string   `toml:"purge_schedule"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClientConfig contains settings for the remote sync client.
type ClientConfig struct {
	BaseURL        string   `toml:"base_url"`
	RateLimit      float64  `toml:"rate_limit"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// SyncConfig tunes the debounced persistence scheduler.
type SyncConfig struct {
	Debounce     Duration `toml:"debounce"`
	Retries      int      `toml:"retries"`
	FlushTimeout Duration `toml:"flush_timeout"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Duration wraps [time.Duration] so TOML strings like "1500ms" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the config for values the engine and server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}

	if c.Server.SessionTTL.Duration <= 0 {
		return fmt.Errorf("%w: session_ttl must be positive", ErrInvalidConfig)
	}

	if c.Sync.Debounce.Duration <= 0 {
		return fmt.Errorf("%w: debounce must be positive", ErrInvalidConfig)
	}

	if c.Sync.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative", ErrInvalidConfig)
	}

	if c.Sync.FlushTimeout.Duration <= 0 {
		return fmt.Errorf("%w: flush_timeout must be positive", ErrInvalidConfig)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}
