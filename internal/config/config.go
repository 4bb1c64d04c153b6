package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the application configuration model and full
// YAML-based load/save behavior, including first-run config creation and
// 0600 permissions. The venue registry lives in venues.go.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Local"
	defaultLogLevel     = "info"
	defaultVenuesFile   = "./pubs.json"
	defaultVenue        = "sportsbaren"
	defaultCacheDir     = "./var/feed-cache"
	defaultFetchTimeout = 15 * time.Second
	defaultFeedsDir     = "feeds"
	defaultUserAgent    = "venuecal-ical-prefetch"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the web views.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// MirrorConfig controls the offline feed mirror.
type MirrorConfig struct {
	// FeedsDir is where mirrored feeds are written. Relative paths are
	// resolved against the venue registry file's directory.
	FeedsDir string `yaml:"feeds_dir" json:"feeds_dir"`

	// Schedule is an optional cron expression (e.g. "0 */6 * * *"). When
	// set, `serve` also re-mirrors all feeds on this schedule.
	Schedule string `yaml:"schedule" json:"schedule"`

	// UserAgent is sent with every mirror request.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web views and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for day boundaries and for floating
	// feed times. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// VenuesFile is the venue registry (pubs.json compatible).
	VenuesFile string `yaml:"venues_file" json:"venues_file"`

	// DefaultVenue is shown when no venue is requested.
	DefaultVenue string `yaml:"default_venue" json:"default_venue"`

	// CacheDir holds the conditional-GET cache for remote feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FetchTimeout bounds a single feed request.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		LogLevel:     defaultLogLevel,
		VenuesFile:   defaultVenuesFile,
		DefaultVenue: defaultVenue,
		CacheDir:     defaultCacheDir,
		FetchTimeout: defaultFetchTimeout,
		Mirror: MirrorConfig{
			FeedsDir:  defaultFeedsDir,
			UserAgent: defaultUserAgent,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.VenuesFile == "" {
		c.VenuesFile = defaultVenuesFile
	}
	if c.DefaultVenue == "" {
		c.DefaultVenue = defaultVenue
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.Mirror.FeedsDir == "" {
		c.Mirror.FeedsDir = defaultFeedsDir
	}
	if c.Mirror.UserAgent == "" {
		c.Mirror.UserAgent = defaultUserAgent
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.Timezone, validation.Required, validation.By(validTimezone)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.VenuesFile, validation.Required),
		validation.Field(&c.DefaultVenue, validation.Required),
		validation.Field(&c.FetchTimeout, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&c.Mirror,
		validation.Field(&c.Mirror.FeedsDir, validation.Required),
		validation.Field(&c.Mirror.Schedule, validation.By(validSchedule)),
	); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("basic_auth: username and password must both be set")
	}
	return nil
}

// Location resolves Timezone. Invalid names fall back to time.Local;
// Validate rejects them earlier.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func validTimezone(v any) error {
	name, _ := v.(string)
	if strings.EqualFold(name, "local") {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q", name)
	}
	return nil
}

func validSchedule(v any) error {
	expr, _ := v.(string)
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - expand ${ENV} references, read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// writeFileAtomic writes data next to path and renames it into place.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".venuecal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
