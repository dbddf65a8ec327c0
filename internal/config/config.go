package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"eventpoints/internal/civil"
)

// Environment variables that override the file. They may also come from a
// .env file next to the config file.
const (
	EnvListen       = "EVENTPOINTS_LISTEN"
	EnvTimezone     = "EVENTPOINTS_TIMEZONE"
	EnvBackendURL   = "EVENTPOINTS_BACKEND_URL"
	EnvBackendToken = "EVENTPOINTS_BACKEND_TOKEN"
	EnvDefaultPts   = "EVENTPOINTS_DEFAULT_POINTS"

	// EnvOffsets lists the zone's offsets as NAME=SECONDS pairs, standard
	// first: "MST=-25200,MDT=-21600".
	EnvOffsets = "EVENTPOINTS_OFFSETS"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the admin API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and kiosk page.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA name of the civil zone all dates are entered in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Offsets are the zone's UTC offsets in seconds east of UTC, standard
	// first. They must be exactly the offsets Timezone uses.
	Offsets []civil.Offset `yaml:"offsets" json:"offsets"`

	// BackendURL is the base URL of the events/students/attendance API.
	BackendURL   string `yaml:"backend_url" json:"backend_url"`
	BackendToken string `yaml:"backend_token,omitempty" json:"-"`

	// CachePath is the bbolt file holding the last backend snapshot.
	CachePath string `yaml:"cache_path" json:"cache_path"`

	// RefreshCron is the cron schedule for refreshing the backend snapshot.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DefaultPoints is used for new events that do not specify points.
	DefaultPoints int `yaml:"default_points" json:"default_points"`

	// MaxInstances caps how many events one recurring submission creates.
	MaxInstances int `yaml:"max_instances" json:"max_instances"`

	// KioskURL is what -capture screenshots. Empty means this server's /kiosk.
	KioskURL string `yaml:"kiosk_url,omitempty" json:"kiosk_url,omitempty"`

	// BasicAuth, if set, protects everything except /health, /kiosk and the
	// public check-in routes.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	zone := civil.DefaultZone()
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      zone.Name,
		Offsets:       zone.Offsets,
		BackendURL:    "http://127.0.0.1:8000",
		CachePath:     "/var/lib/eventpoints/cache.db",
		RefreshCron:   "*/5 * * * *",
		DefaultPoints: 1,
		MaxInstances:  1000,
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
		// Offsets only make sense together with the zone they belong to.
		if len(c.Offsets) == 0 {
			c.Offsets = def.Offsets
		}
	}
	if c.BackendURL == "" {
		c.BackendURL = def.BackendURL
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	if c.CachePath == "" {
		c.CachePath = def.CachePath
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.DefaultPoints <= 0 {
		c.DefaultPoints = def.DefaultPoints
	}
	if c.MaxInstances <= 0 {
		c.MaxInstances = def.MaxInstances
	}
}

// Zone returns the civil zone described by Timezone and Offsets.
func (c *Config) Zone() civil.Zone {
	return civil.Zone{Name: c.Timezone, Offsets: slices.Clone(c.Offsets)}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Offsets) == 0 {
		return errors.New("config: offsets must list the zone's UTC offsets, standard first")
	}
	if _, err := civil.NewResolver(c.Zone()); err != nil {
		return err
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
//   - Finally a .env file in the config's directory (if any) and the
//     process environment are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
		return cfg, applyEnv(cfg, filepath.Join(filepath.Dir(path), ".env"))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if err := applyEnv(&cfg, filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv loads dotenv (without overriding variables already set) and
// copies recognized variables into cfg.
func applyEnv(cfg *Config, dotenv string) error {
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return err
		}
	}

	if v := getEnv(EnvListen); v != "" {
		cfg.Listen = v
	}
	if v := getEnv(EnvTimezone); v != "" && v != cfg.Timezone {
		cfg.Timezone = v
		// The file's offsets belong to the file's zone.
		cfg.Offsets = nil
		if zone, err := civil.ZoneFor(v); err == nil {
			cfg.Offsets = zone.Offsets
		}
	}
	if v := getEnv(EnvOffsets); v != "" {
		offsets, err := parseOffsets(v)
		if err != nil {
			return err
		}
		cfg.Offsets = offsets
	}
	if v := getEnv(EnvBackendURL); v != "" {
		cfg.BackendURL = strings.TrimRight(v, "/")
	}
	if v := getEnv(EnvBackendToken); v != "" {
		cfg.BackendToken = v
	}
	if v := getEnv(EnvDefaultPts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.New("config: " + EnvDefaultPts + " must be a positive integer")
		}
		cfg.DefaultPoints = n
	}
	return nil
}

// parseOffsets reads "NAME=SECONDS[,NAME=SECONDS...]".
func parseOffsets(v string) ([]civil.Offset, error) {
	var out []civil.Offset
	for part := range strings.SplitSeq(v, ",") {
		name, secs, ok := strings.Cut(strings.TrimSpace(part), "=")
		n, err := strconv.Atoi(strings.TrimSpace(secs))
		if !ok || name == "" || err != nil {
			return nil, fmt.Errorf("config: %s: bad offset %q, want NAME=SECONDS", EnvOffsets, part)
		}
		out = append(out, civil.Offset{Name: strings.TrimSpace(name), Seconds: n})
	}
	return out, nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".eventpoints-config-*.tmp")
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

// Save is a convenience method on Config that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
