package config

import (
	"embed"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-kratos/kratos/v2/log"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Rendering modes understood by the session layer.
const (
	ModeSimple = "simple"
	ModeCustom = "custom"
	ModeDirect = "direct"
)

type Source struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// Layout is the geometry the consuming masonry engine is designed around.
type Layout struct {
	Gap          float64 `yaml:"gap"`
	MinWidth     float64 `yaml:"min_width"`
	FooterHeight float64 `yaml:"footer_height"`
}

type Placeholder struct {
	SkeletonCount int       `yaml:"skeleton_count"`
	Ratios        []float64 `yaml:"ratios"`
}

type Measure struct {
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

type Config struct {
	Mode      string `yaml:"mode"`
	PageSize  int    `yaml:"page_size"`
	Threshold int    `yaml:"threshold"`
	LogLevel  string `yaml:"log_level"`
	Catalog   string `yaml:"catalog,omitempty"`
	// ImportInterval is how stale the catalog may get before launching
	// re-imports the sources.
	ImportInterval string      `yaml:"import_interval"`
	Retention      string      `yaml:"retention"`
	Layout         Layout      `yaml:"layout"`
	Placeholder    Placeholder `yaml:"placeholder"`
	Measure        Measure     `yaml:"measure"`
	Sources        []Source    `yaml:"sources"`
}

func (c *Config) PageSizeOrDefault() int {
	if c.PageSize <= 0 {
		return 8
	}
	return c.PageSize
}

func (c *Config) ThresholdOrDefault() int {
	if c.Threshold < 0 {
		return 0
	}
	return c.Threshold
}

// ReferenceWidth is the nominal column width sizes are normalized against.
func (c *Config) ReferenceWidth() float64 {
	if c.Layout.MinWidth <= 0 {
		return 236
	}
	return c.Layout.MinWidth
}

func (c *Config) MeasureTimeoutDuration() time.Duration {
	if c.Measure.Timeout == "" {
		return 8 * time.Second
	}
	d, err := time.ParseDuration(c.Measure.Timeout)
	if err != nil || d < 0 {
		return 8 * time.Second
	}
	return d
}

func (c *Config) ImportIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.ImportInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func (c *Config) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 30 * 24 * time.Hour
	}
	// Support "Nd" day syntax
	if len(c.Retention) > 1 && c.Retention[len(c.Retention)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(c.Retention, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 30 * 24 * time.Hour
	}
	return d
}

func (c *Config) SkeletonCount() int {
	if c.Placeholder.SkeletonCount <= 0 {
		return 12
	}
	return c.Placeholder.SkeletonCount
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// CatalogPath returns the sqlite catalog location, honoring the config value
// before the XDG default.
func (c *Config) CatalogPath() string {
	if c.Catalog != "" {
		return c.Catalog
	}
	return CachePath()
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "pinfeed", "config.yaml")
}

func CachePath() string {
	return filepath.Join(xdg.CacheHome, "pinfeed", "catalog.db")
}

func LogPath() string {
	return filepath.Join(xdg.StateHome, "pinfeed", "pinfeed.log")
}

// NewLogger builds the process logger, dropping records below the configured level.
func (c *Config) NewLogger(w io.Writer) log.Logger {
	level := log.ParseLevel(strings.ToUpper(c.LogLevel))
	logger := log.With(log.NewStdLogger(w), "ts", log.DefaultTimestamp, "caller", log.DefaultCaller)
	return log.NewFilter(logger, log.FilterLevel(level))
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// First run: persist defaults, but a read-only home is not fatal.
			_ = writeDefaults(path)
			applyEnv(defaults)
			if err := validate(defaults); err != nil {
				return nil, err
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unmarshal over the defaults so omitted keys keep their default values.
	cfg := *defaults
	cfg.Sources = nil
	cfg.Placeholder.Ratios = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(cfg.Placeholder.Ratios) == 0 {
		cfg.Placeholder.Ratios = defaults.Placeholder.Ratios
	}
	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv lets PINFEED_* variables (possibly from a .env file) override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PINFEED_CATALOG"); v != "" {
		cfg.Catalog = v
	}
	if v := os.Getenv("PINFEED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PINFEED_MODE"); v != "" {
		cfg.Mode = v
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeSimple, ModeCustom, ModeDirect:
	default:
		return fmt.Errorf("unknown mode %q (valid: simple, custom, direct)", cfg.Mode)
	}
	if cfg.Layout.MinWidth < 0 {
		return fmt.Errorf("layout.min_width must be positive, got %v", cfg.Layout.MinWidth)
	}
	if cfg.Layout.FooterHeight < 0 {
		return fmt.Errorf("layout.footer_height must not be negative, got %v", cfg.Layout.FooterHeight)
	}
	for i, r := range cfg.Placeholder.Ratios {
		if r <= 0 {
			return fmt.Errorf("placeholder ratio %d must be positive, got %v", i, r)
		}
	}

	validTypes := map[string]bool{"rss": true, "atom": true}
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
		if !validTypes[s.Type] {
			return fmt.Errorf("source %q: unknown type %q (valid: rss, atom)", s.Name, s.Type)
		}
	}
	return nil
}
