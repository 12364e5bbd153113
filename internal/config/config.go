package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	AniList   OAuthConfig     `yaml:"anilist"`
	MAL       OAuthConfig     `yaml:"mal"`
	Watch     WatchConfig     `yaml:"watch"`
	Downloads DownloadsConfig `yaml:"downloads"`
}

type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"` // 0 disables the metrics server
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// CatalogConfig controls title resolution against the external catalog.
type CatalogConfig struct {
	Provider       string        `yaml:"provider"` // anilist or mal
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RatePerMinute  int           `yaml:"rate_per_minute"`
}

type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

type WatchConfig struct {
	Interval  time.Duration `yaml:"interval"`
	MinRepeat time.Duration `yaml:"min_repeat"`
}

type DownloadsConfig struct {
	Dir         string `yaml:"dir"`
	Concurrency int    `yaml:"concurrency"`
}

const (
	ProviderAniList = "anilist"
	ProviderMAL     = "mal"
)

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    4455,
			MetricsPort: 9455,
		},
		Database: DatabaseConfig{
			Path: "./data/playon.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Catalog: CatalogConfig{
			Provider:       ProviderAniList,
			CacheTTL:       5 * time.Minute,
			RequestTimeout: 10 * time.Second,
			RatePerMinute:  90,
		},
		AniList: OAuthConfig{
			RedirectURI: "http://localhost:4455/api/auth/anilist/callback",
		},
		MAL: OAuthConfig{
			RedirectURI: "http://localhost:4455/api/auth/mal/callback",
		},
		Watch: WatchConfig{
			Interval:  5 * time.Second,
			MinRepeat: 10 * time.Minute,
		},
		Downloads: DownloadsConfig{
			Dir:         "./data/downloads",
			Concurrency: 6,
		},
	}
}

// Load reads configuration from a YAML file, then applies environment
// overrides for secrets. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"PLAYON_ANILIST_CLIENT_SECRET": &c.AniList.ClientSecret,
		"PLAYON_MAL_CLIENT_ID":         &c.MAL.ClientID,
		"PLAYON_MAL_CLIENT_SECRET":     &c.MAL.ClientSecret,
	}
	for env, field := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks every setting and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("server.metrics_port out of range: %d", c.Server.MetricsPort))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	switch c.Catalog.Provider {
	case ProviderAniList, ProviderMAL:
	default:
		errs = append(errs, fmt.Errorf("catalog.provider must be %q or %q, got %q", ProviderAniList, ProviderMAL, c.Catalog.Provider))
	}
	if c.Catalog.Provider == ProviderMAL && c.MAL.ClientID == "" {
		errs = append(errs, errors.New("mal.client_id is required when catalog.provider is mal"))
	}
	if c.Catalog.CacheTTL <= 0 {
		errs = append(errs, errors.New("catalog.cache_ttl must be positive"))
	}
	if c.Catalog.RatePerMinute <= 0 {
		errs = append(errs, errors.New("catalog.rate_per_minute must be positive"))
	}
	if c.Watch.Interval <= 0 {
		errs = append(errs, errors.New("watch.interval must be positive"))
	}
	if c.Downloads.Concurrency <= 0 {
		errs = append(errs, errors.New("downloads.concurrency must be positive"))
	}

	return errors.Join(errs...)
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		c.Downloads.Dir,
	}
	if c.Logging.File != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return nil
}
