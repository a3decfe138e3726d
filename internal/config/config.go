package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Web server configuration
	Web WebConfig `yaml:"web"`

	// Token signing and lifetimes
	Auth AuthConfig `yaml:"auth"`

	// Timer engine and idle sweeper configuration
	Tracker TrackerConfig `yaml:"tracker"`

	// Outbound integration calls
	Integrations IntegrationsConfig `yaml:"integrations"`

	// Screenshot storage
	Storage StorageConfig `yaml:"storage"`

	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Report configuration
	Report ReportConfig `yaml:"report"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database file
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	AuthRateLimit  int           `yaml:"auth_rate_limit"` // requests per minute per IP on /api/auth
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // per websocket frame
}

// AuthConfig holds token configuration
type AuthConfig struct {
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// TrackerConfig holds timer behavior configuration
type TrackerConfig struct {
	IdleSweep string `yaml:"idle_sweep"` // cron spec for the idle sweeper, empty disables it
}

// IntegrationsConfig bounds every outbound provider call
type IntegrationsConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries uint64        `yaml:"max_retries"`
}

// StorageConfig holds screenshot storage configuration
type StorageConfig struct {
	ScreenshotDir string `yaml:"screenshot_dir"`
	PublicPrefix  string `yaml:"public_prefix"` // URL prefix screenshots are served under
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `yaml:"pid_file"` // Path to PID file for daemon management
}

// LogConfig holds logging configuration
type LogConfig struct {
	File       string `yaml:"file"` // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Verbose    bool   `yaml:"verbose"`
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	TimeZone string `yaml:"timezone"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/teamclock/teamclock.db
		},
		Web: WebConfig{
			Host:           "localhost",
			Port:           8000,
			AllowedOrigins: []string{"*"},
			AuthRateLimit:  60,
			WriteTimeout:   5 * time.Second,
		},
		Auth: AuthConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Tracker: TrackerConfig{
			IdleSweep: "@every 1m",
		},
		Integrations: IntegrationsConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
		},
		Storage: StorageConfig{
			ScreenshotDir: "", // Empty means use default ~/.config/teamclock/screenshots
			PublicPrefix:  "/screenshots/",
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/teamclock-%d.pid", os.Getuid()),
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Report: ReportConfig{
			TimeZone: "UTC",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate web config
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Web.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	// Validate auth config
	if len(c.Auth.Secret) < 16 {
		return fmt.Errorf("auth secret must be at least 16 characters")
	}

	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if c.Auth.RefreshTTL < c.Auth.AccessTTL {
		return fmt.Errorf("refresh ttl (%v) cannot be shorter than access ttl (%v)",
			c.Auth.RefreshTTL, c.Auth.AccessTTL)
	}

	// Validate tracker config
	if c.Tracker.IdleSweep != "" {
		if _, err := cron.ParseStandard(c.Tracker.IdleSweep); err != nil {
			return fmt.Errorf("invalid idle sweep schedule %q: %w", c.Tracker.IdleSweep, err)
		}
	}

	if c.Integrations.Timeout <= 0 {
		return fmt.Errorf("integration timeout must be positive")
	}

	if _, err := time.LoadLocation(c.Report.TimeZone); err != nil {
		return fmt.Errorf("invalid report timezone %q: %w", c.Report.TimeZone, err)
	}

	// Validate daemon config
	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// Address returns the host:port the web server binds to
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// Location returns the report time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Report.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// String returns a string representation of the config
func (c *Config) String() string {
	secret := "(unset)"
	if c.Auth.Secret != "" {
		secret = "***"
	}
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Web:
    Host: %s
    Port: %d
  Auth:
    Secret: %s
    Access TTL: %v
    Refresh TTL: %v
  Tracker:
    Idle Sweep: %s
  Integrations:
    Timeout: %v
    Max Retries: %d
  Storage:
    Screenshot Dir: %s
  Daemon:
    PID File: %s
  Log:
    File: %s
    Verbose: %v
  Report:
    Time Zone: %s`,
		c.Database.Path,
		c.Web.Host,
		c.Web.Port,
		secret,
		c.Auth.AccessTTL,
		c.Auth.RefreshTTL,
		c.Tracker.IdleSweep,
		c.Integrations.Timeout,
		c.Integrations.MaxRetries,
		c.Storage.ScreenshotDir,
		c.Daemon.PIDFile,
		c.Log.File,
		c.Log.Verbose,
		c.Report.TimeZone,
	)
}
