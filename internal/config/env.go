package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile overlays values from a YAML file onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Database configuration
	if dbPath := os.Getenv("TEAMCLOCK_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Web configuration
	if webHost := os.Getenv("TEAMCLOCK_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}

	if webPort := os.Getenv("TEAMCLOCK_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}

	if origins := os.Getenv("TEAMCLOCK_ALLOWED_ORIGINS"); origins != "" {
		cfg.Web.AllowedOrigins = strings.Split(origins, ",")
	}

	// Auth configuration
	if secret := os.Getenv("TEAMCLOCK_JWT_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}

	if ttl := os.Getenv("TEAMCLOCK_ACCESS_TTL_MINUTES"); ttl != "" {
		if minutes, err := strconv.Atoi(ttl); err == nil && minutes > 0 {
			cfg.Auth.AccessTTL = time.Duration(minutes) * time.Minute
		}
	}

	if ttl := os.Getenv("TEAMCLOCK_REFRESH_TTL_DAYS"); ttl != "" {
		if days, err := strconv.Atoi(ttl); err == nil && days > 0 {
			cfg.Auth.RefreshTTL = time.Duration(days) * 24 * time.Hour
		}
	}

	// Tracker configuration
	if sweep, ok := os.LookupEnv("TEAMCLOCK_IDLE_SWEEP"); ok {
		cfg.Tracker.IdleSweep = sweep
	}

	// Integrations configuration
	if timeout := os.Getenv("TEAMCLOCK_INTEGRATION_TIMEOUT"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil && seconds > 0 {
			cfg.Integrations.Timeout = time.Duration(seconds) * time.Second
		}
	}

	// Storage configuration
	if dir := os.Getenv("TEAMCLOCK_SCREENSHOT_DIR"); dir != "" {
		cfg.Storage.ScreenshotDir = dir
	}

	// Daemon configuration
	if pidFile := os.Getenv("TEAMCLOCK_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	// Log configuration
	if logFile := os.Getenv("TEAMCLOCK_LOG_FILE"); logFile != "" {
		cfg.Log.File = logFile
	}

	if verbose := os.Getenv("TEAMCLOCK_VERBOSE"); verbose != "" {
		if val, err := strconv.ParseBool(verbose); err == nil {
			cfg.Log.Verbose = val
		}
	}

	// Report configuration
	if timeZone := os.Getenv("TEAMCLOCK_TIMEZONE"); timeZone != "" {
		cfg.Report.TimeZone = timeZone
	}
}

// New creates a new Config with default values, then applies the YAML file
// named by TEAMCLOCK_CONFIG (or path, if set) and finally the environment.
func New(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TEAMCLOCK_CONFIG")
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	return cfg, nil
}
