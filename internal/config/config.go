package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvAPIBaseURL overrides api_base_url when set.
const EnvAPIBaseURL = "GROUPSCHED_API_BASE_URL"

const (
	DedupDateTimeCourse = "date_time_course"
	DedupDateTime       = "date_time"
)

// DayWindow controls how many days around the anchor date the table view
// loads in one request.
type DayWindow struct {
	Back  int `yaml:"back" json:"back"`
	Ahead int `yaml:"ahead" json:"ahead"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
// PasswordHash (Argon2id, see `groupsched hash-password`) wins over Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" json:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"password_hash,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// APIBaseURL is the schedule service root; requests go to
	// {APIBaseURL}/get_schedule/.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// Timezone is the IANA timezone used to decide "today" and for the
	// iCalendar export.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	DayWindow DayWindow `yaml:"day_window" json:"day_window"`

	// DedupKey selects which fields identify a schedule entry:
	// "date_time_course" (default) or "date_time".
	DedupKey string `yaml:"dedup_key" json:"dedup_key"`

	// RequestTimeout bounds a single schedule request. Zero leaves the
	// transport default in place (no client-side timeout).
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// StatePath is the SQLite file holding the selected group, view mode,
	// anchor date and calendar day markers.
	StatePath string `yaml:"state_path" json:"state_path"`

	// RefreshCron, if set, periodically reloads the current view from
	// scratch (e.g. "0 */6 * * *"). Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// PreviewPath is where calendar snapshots are written.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	// SnapshotOnRefresh captures a calendar snapshot after each scheduled reload.
	SnapshotOnRefresh bool `yaml:"snapshot_on_refresh" json:"snapshot_on_refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// CSRFKey (32 bytes) enables CSRF protection for HTML form posts.
	CSRFKey string `yaml:"csrf_key,omitempty" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     "127.0.0.1:8080",
		APIBaseURL: "http://127.0.0.1:8000",
		Timezone:   "Europe/Moscow",
		WeekStart:  "monday",
		DayWindow:  DayWindow{Back: 3, Ahead: 3},
		DedupKey:   DedupDateTimeCourse,
		StatePath:  "./var/groupsched.db",
		// No periodic reload by default; the cache lives until the group changes.
		RefreshCron: "",
		PreviewPath: "./var/preview.png",
		LogLevel:    "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = def.APIBaseURL
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}

	if c.DayWindow.Back < 0 {
		c.DayWindow.Back = 0
	}
	if c.DayWindow.Ahead < 0 {
		c.DayWindow.Ahead = 0
	}
	// The window must reach at least one day beyond the anchor.
	if c.DayWindow.Back+c.DayWindow.Ahead == 0 {
		c.DayWindow = def.DayWindow
	}

	switch c.DedupKey {
	case DedupDateTimeCourse, DedupDateTime:
	default:
		c.DedupKey = DedupDateTimeCourse
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.StatePath == "" {
		c.StatePath = def.StatePath
	}
	if c.PreviewPath == "" {
		c.PreviewPath = def.PreviewPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// ApplyEnv lets the environment override file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.APIBaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     and return it.
//   - If the file exists, read YAML, normalize defaults, apply env overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory (0700).
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

	tmp, err := os.CreateTemp(dir, ".groupsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
