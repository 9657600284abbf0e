package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"mbtalerts/internal/feed"
	"mbtalerts/internal/model"
)

// Calendar backends.
const (
	BackendGoogle = "google"
	BackendICS    = "ics"
)

// Feed formats accepted in feed.format.
const (
	FormatJSONAPI = feed.FormatJSONAPI
	FormatGTFSRT  = feed.FormatGTFSRT
)

const (
	DefaultFeedURL  = "https://api-v3.mbta.com/alerts?filter[route_type]=0,1"
	DefaultTimezone = "America/New_York"
	DefaultSchedule = "*/10 * * * *"
)

// DefaultSkipEffects lists station-level effects that do not change train
// service and would only add noise to the calendar.
var DefaultSkipEffects = []string{
	"ACCESS_ISSUE",
	"BIKE_ISSUE",
	"ELEVATOR_CLOSURE",
	"ESCALATOR_CLOSURE",
	"FACILITY_ISSUE",
	"PARKING_CLOSURE",
	"PARKING_ISSUE",
	"STATION_ISSUE",
}

// FeedConfig describes where alerts come from.
type FeedConfig struct {
	// URL of the alerts endpoint.
	URL string `yaml:"url" json:"url"`
	// Format is "jsonapi" (MBTA v3 API) or "gtfs-rt" (GTFS-Realtime protobuf).
	Format string `yaml:"format" json:"format"`
	// CacheDir holds cached feed responses.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// APIKeyEnv names the environment variable holding the API key, if any.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// CalendarConfig selects and configures the calendar backend.
type CalendarConfig struct {
	// Backend is "google" or "ics".
	Backend string `yaml:"backend" json:"backend"`
	// CalendarID is the Google calendar id. GOOGLE_CALENDAR_ID overrides it.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// ICSPath is the file used by the "ics" backend.
	ICSPath string `yaml:"ics_path" json:"ics_path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StatusConfig configures the HTTP status server started in daemon mode.
type StatusConfig struct {
	// Listen is the HTTP listen address; empty disables the server.
	Listen    string           `yaml:"listen" json:"listen"`
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

type LogConfig struct {
	// Format is "text" or "json".
	Format string `yaml:"format" json:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone used for "today" and for GTFS-RT timestamps.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Schedule is the cron expression driving daemon mode.
	Schedule string `yaml:"schedule" json:"schedule"`

	// Concurrency bounds parallel calendar writes within one pass.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// SkipEffects are effect codes never mirrored into the calendar.
	SkipEffects []string `yaml:"skip_effects" json:"skip_effects"`

	Feed     FeedConfig     `yaml:"feed" json:"feed"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Status   StatusConfig   `yaml:"status" json:"status"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// DefaultPath returns ~/.config/mbtalerts/config.yaml, or a relative path
// when the user config dir is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "mbtalerts.yaml")
	}
	return filepath.Join(dir, "mbtalerts", "config.yaml")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "cache")
	}
	return filepath.Join(dir, "mbtalerts")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:    DefaultTimezone,
		Schedule:    DefaultSchedule,
		Concurrency: 1,
		SkipEffects: append([]string(nil), DefaultSkipEffects...),
		Feed: FeedConfig{
			URL:       DefaultFeedURL,
			Format:    FormatJSONAPI,
			CacheDir:  defaultCacheDir(),
			APIKeyEnv: "MBTA_API_KEY",
		},
		Calendar: CalendarConfig{
			Backend: BackendGoogle,
			ICSPath: "mbtalerts.ics",
		},
		Status: StatusConfig{
			Listen: "127.0.0.1:8080",
		},
		Log: LogConfig{Format: "text"},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Schedule == "" {
		c.Schedule = def.Schedule
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	// An explicit empty list in the file means "skip nothing".
	if c.SkipEffects == nil {
		c.SkipEffects = def.SkipEffects
	}
	if c.Feed.URL == "" {
		c.Feed.URL = def.Feed.URL
	}
	c.Feed.Format = strings.ToLower(c.Feed.Format)
	if c.Feed.Format == "" {
		c.Feed.Format = def.Feed.Format
	}
	if c.Feed.CacheDir == "" {
		c.Feed.CacheDir = def.Feed.CacheDir
	}
	c.Calendar.Backend = strings.ToLower(c.Calendar.Backend)
	if c.Calendar.Backend == "" {
		c.Calendar.Backend = def.Calendar.Backend
	}
	if c.Calendar.ICSPath == "" {
		c.Calendar.ICSPath = def.Calendar.ICSPath
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate reports every problem found in c at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule %q: %w", c.Schedule, err))
	}
	switch c.Feed.Format {
	case FormatJSONAPI, FormatGTFSRT:
	default:
		errs = append(errs, fmt.Errorf("feed.format %q: must be %q or %q", c.Feed.Format, FormatJSONAPI, FormatGTFSRT))
	}
	switch c.Calendar.Backend {
	case BackendGoogle, BackendICS:
	default:
		errs = append(errs, fmt.Errorf("calendar.backend %q: must be %q or %q", c.Calendar.Backend, BackendGoogle, BackendICS))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be \"text\" or \"json\"", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SkipSet returns SkipEffects as a lookup set keyed by
// model.NormalizeEffect.
func (c *Config) SkipSet() map[string]bool {
	set := make(map[string]bool, len(c.SkipEffects))
	for _, e := range c.SkipEffects {
		set[model.NormalizeEffect(e)] = true
	}
	return set
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
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
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions, creating the parent
// directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".mbtalerts-config-*.tmp")
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
