package utils

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML config file shape; environment variables
// override anything set here.
type fileConfig struct {
	// RemoteBaseURL is the calendar service endpoint.
	RemoteBaseURL string `yaml:"remote_base_url"`
	// RemoteToken authenticates against the calendar service.
	RemoteToken string `yaml:"remote_token"`
	// UserID keys both cache tiers.
	UserID string `yaml:"user_id"`
	// CachePath is the SQLite file backing the durable cache.
	CachePath string `yaml:"cache_path"`
	// RefreshCron is a cron spec for background revalidation, e.g. "@every 5m".
	RefreshCron string `yaml:"refresh_cron"`
	// MetricsPort serves the prometheus endpoint.
	MetricsPort string `yaml:"metrics_port"`
	// Timezone is the IANA zone used for day bucketing.
	Timezone string `yaml:"timezone"`
}

type Config struct {
	remoteBaseURL string
	remoteToken   string
	userID        string
	cachePath     string
	refreshCron   string
	metricsPort   string
	location      *time.Location

	bufferMonths      int
	ensureCooldown    time.Duration
	pendingSyncTTL    time.Duration
	overrideTolerance time.Duration
}

func NewConfig() *Config {
	var file fileConfig
	if path := os.Getenv("DAYBOOK_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Error("can't read config file", "path", path, "error", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			slog.Error("invalid config file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Debug("config file loaded", "path", path)
	}

	pick := func(envKey, fileValue, fallback string) string {
		if v := os.Getenv(envKey); v != "" {
			slog.Debug("env", envKey, v)
			return v
		}
		if fileValue != "" {
			return fileValue
		}
		return fallback
	}

	return &Config{
		remoteBaseURL: func() string {
			url := pick("REMOTE_BASE_URL", file.RemoteBaseURL, "")
			if url == "" {
				slog.Error("REMOTE_BASE_URL is not set")
				os.Exit(1)
			}
			return url
		}(),
		remoteToken: func() string {
			token := pick("REMOTE_TOKEN", file.RemoteToken, "")
			if token == "" {
				slog.Warn("REMOTE_TOKEN is not set")
			}
			return token
		}(),
		userID: func() string {
			userID := pick("USER_ID", file.UserID, "")
			if userID == "" {
				slog.Error("USER_ID is not set")
				os.Exit(1)
			}
			return userID
		}(),
		cachePath:   pick("CACHE_PATH", file.CachePath, "./daybook-cache.db"),
		refreshCron: pick("REFRESH_CRON", file.RefreshCron, "@every 5m"),
		metricsPort: pick("METRICS_PORT", file.MetricsPort, "9180"),
		location: func() *time.Location {
			timezoneStr := pick("TIMEZONE", file.Timezone, "")
			switch timezoneStr {
			case "":
				slog.Warn("TIMEZONE is not set, using local timezone", "timezone", time.Local)
				return time.Local
			case "UTC":
				return time.UTC
			default:
				loc, err := time.LoadLocation(timezoneStr)
				if err != nil {
					slog.Error("invalid timezone", "timezone", timezoneStr, "error", err)
					os.Exit(1)
				}
				return loc
			}
		}(),
		bufferMonths: 2,
		ensureCooldown: func() time.Duration {
			raw := os.Getenv("ENSURE_RANGE_COOLDOWN")
			if raw == "" {
				return 10 * time.Second
			}
			duration, err := time.ParseDuration(raw)
			if err != nil {
				slog.Error("invalid ENSURE_RANGE_COOLDOWN", "error", err)
				os.Exit(1)
			}
			return duration
		}(),
		pendingSyncTTL:    time.Minute,
		overrideTolerance: time.Minute,
	}
}

// Get REMOTE_BASE_URL env
func (c *Config) GetRemoteBaseURL() string {
	return c.remoteBaseURL
}

// Get REMOTE_TOKEN env
func (c *Config) GetRemoteToken() string {
	return c.remoteToken
}

// Get USER_ID env
func (c *Config) GetUserID() string {
	return c.userID
}

// Get CACHE_PATH env, default ./daybook-cache.db
func (c *Config) GetCachePath() string {
	return c.cachePath
}

// Get REFRESH_CRON env, default @every 5m
func (c *Config) GetRefreshCron() string {
	return c.refreshCron
}

// Get METRICS_PORT env, default 9180
func (c *Config) GetMetricsPort() string {
	return c.metricsPort
}

// Get TIMEZONE env
func (c *Config) GetLocation() *time.Location {
	return c.location
}

// How many months of buffer to load around the visible range
func (c *Config) GetBufferMonths() int {
	return c.bufferMonths
}

// Get ENSURE_RANGE_COOLDOWN env, default 10s
func (c *Config) GetEnsureCooldown() time.Duration {
	return c.ensureCooldown
}

func (c *Config) GetPendingSyncTTL() time.Duration {
	return c.pendingSyncTTL
}

func (c *Config) GetOverrideTolerance() time.Duration {
	return c.overrideTolerance
}
