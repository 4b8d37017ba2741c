package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const appName = "trendscope"

// Environment fallbacks for credentials left out of the config file.
const (
	EnvDataLabClientID     = "TRENDSCOPE_DATALAB_CLIENT_ID"
	EnvDataLabClientSecret = "TRENDSCOPE_DATALAB_CLIENT_SECRET"
	EnvYouTubeAPIKey       = "TRENDSCOPE_YOUTUBE_API_KEY"
)

type DataLabConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TimeUnit     string `yaml:"time_unit"`
	Lookback     string `yaml:"lookback"`
	Groups       string `yaml:"groups"`
}

type YouTubeConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Keyword  string `yaml:"keyword"`
	Order    string `yaml:"order"`
	Months   int    `yaml:"months"`
	MinViews int64  `yaml:"min_views"`
	MaxPages int    `yaml:"max_pages"`
}

type Config struct {
	CacheTTL       string        `yaml:"cache_ttl"`
	RequestTimeout string        `yaml:"request_timeout"`
	Retention      string        `yaml:"retention"`
	LogLevel       string        `yaml:"log_level"`
	ExportDir      string        `yaml:"export_dir,omitempty"`
	DataLab        DataLabConfig `yaml:"datalab"`
	YouTube        YouTubeConfig `yaml:"youtube"`
}

// DataLabCredentials returns the client id and secret, config first, then environment.
func (c *Config) DataLabCredentials() (id, secret string) {
	id, secret = c.DataLab.ClientID, c.DataLab.ClientSecret
	if id == "" {
		id = os.Getenv(EnvDataLabClientID)
	}
	if secret == "" {
		secret = os.Getenv(EnvDataLabClientSecret)
	}
	return id, secret
}

// DataLabEnabled is true when both halves of the credential pair are available.
func (c *Config) DataLabEnabled() bool {
	id, secret := c.DataLabCredentials()
	return id != "" && secret != ""
}

// YouTubeKey returns the resolved API key (config or env var).
func (c *Config) YouTubeKey() string {
	if c.YouTube.APIKey != "" {
		return c.YouTube.APIKey
	}
	return os.Getenv(EnvYouTubeAPIKey)
}

func (c *Config) CacheTTLDuration() time.Duration {
	return parseDuration(c.CacheTTL, 10*time.Minute)
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return parseDuration(c.RequestTimeout, 15*time.Second)
}

// RetentionDuration is how long run history is kept. Default 90 days.
func (c *Config) RetentionDuration() time.Duration {
	return parseDuration(c.Retention, 90*24*time.Hour)
}

// LookbackDuration is the default distance of the trend start date from today.
func (c *Config) LookbackDuration() time.Duration {
	return parseDuration(c.DataLab.Lookback, 60*24*time.Hour)
}

// parseDuration accepts Go durations and an "Nd" day form.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetMinViews returns the table's view threshold, defaulting to 100.
func (c *Config) GetMinViews() int64 {
	if c.YouTube.MinViews <= 0 {
		return 100
	}
	return c.YouTube.MinViews
}

// GetMonths returns the default look-back in months, defaulting to 6.
func (c *Config) GetMonths() int {
	if c.YouTube.Months <= 0 {
		return 6
	}
	return c.YouTube.Months
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// HistoryPath is the sqlite file holding run history.
func HistoryPath() string {
	return filepath.Join(xdg.DataHome, appName, "history.db")
}

func LogPath() string {
	return filepath.Join(xdg.StateHome, appName, appName+".log")
}

// ExportDirectory resolves where exports are written: configured dir, else the user's download dir.
func (c *Config) ExportDirectory() string {
	if c.ExportDir != "" {
		return c.ExportDir
	}
	if xdg.UserDirs.Download != "" {
		return xdg.UserDirs.Download
	}
	return "."
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

// Load reads the config at path (or the default location). Keys missing from
// the file keep their embedded default values.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: just use embedded defaults
			_ = writeDefaults(path)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o600)
}

func validate(cfg *Config) error {
	if err := checkEndpoint("datalab", cfg.DataLab.Endpoint); err != nil {
		return err
	}
	if err := checkEndpoint("youtube", cfg.YouTube.Endpoint); err != nil {
		return err
	}

	validUnits := map[string]bool{"date": true, "week": true, "month": true}
	if cfg.DataLab.TimeUnit != "" && !validUnits[cfg.DataLab.TimeUnit] {
		return fmt.Errorf("datalab: unknown time_unit %q (valid: date, week, month)", cfg.DataLab.TimeUnit)
	}

	validOrders := map[string]bool{"date": true, "relevance": true, "viewCount": true}
	if cfg.YouTube.Order != "" && !validOrders[cfg.YouTube.Order] {
		return fmt.Errorf("youtube: unknown order %q (valid: date, relevance, viewCount)", cfg.YouTube.Order)
	}
	if cfg.YouTube.Months < 0 || cfg.YouTube.Months > 24 {
		return fmt.Errorf("youtube: months must be between 1 and 24, got %d", cfg.YouTube.Months)
	}
	if cfg.YouTube.MaxPages < 0 {
		return fmt.Errorf("youtube: max_pages must not be negative, got %d", cfg.YouTube.MaxPages)
	}
	return nil
}

func checkEndpoint(section, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid endpoint: %w", section, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: endpoint scheme must be http or https, got %q", section, u.Scheme)
	}
	return nil
}
