package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
	"github.com/cristianadrielbraun/qrlinks/internal/qrrender"
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig   `yaml:"server"`
	Store  StoreConfig    `yaml:"store"`
	Cache  CacheConfig    `yaml:"cache"`
	Render RenderConfig   `yaml:"render"`
	Logger logging.Config `yaml:"logger"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	BaseURL     string `yaml:"base_url"`
	AdminToken  string `yaml:"admin_token"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	// PortAttempts is how many successive ports are tried when the
	// configured one is busy.
	PortAttempts int `yaml:"port_attempts"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"` // sqlite or postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	DB      int           `yaml:"db"`
	TTL     time.Duration `yaml:"ttl"`
}

type RenderConfig struct {
	SizePx       int    `yaml:"size_px"`
	Margin       int    `yaml:"margin"`
	Encoder      string `yaml:"encoder"`
	GradientFrom string `yaml:"gradient_from"`
	GradientTo   string `yaml:"gradient_to"`
	FinderColor  string `yaml:"finder_color"`
	Workers      int    `yaml:"workers"`
}

// Style converts the configured hex colours. Validate must have passed.
func (r RenderConfig) Style() (qrrender.Style, error) {
	from, err := qrrender.ParseHexColor(r.GradientFrom)
	if err != nil {
		return qrrender.Style{}, fmt.Errorf("gradient_from: %w", err)
	}
	to, err := qrrender.ParseHexColor(r.GradientTo)
	if err != nil {
		return qrrender.Style{}, fmt.Errorf("gradient_to: %w", err)
	}
	finder, err := qrrender.ParseHexColor(r.FinderColor)
	if err != nil {
		return qrrender.Style{}, fmt.Errorf("finder_color: %w", err)
	}
	return qrrender.Style{Gradient: qrrender.Gradient{From: from, To: to}, Finder: finder}, nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000", MaxUploadMB: 25, PortAttempts: 20},
		Store:  StoreConfig{Driver: "sqlite", SQLitePath: "data/qr.db"},
		Cache:  CacheConfig{Addr: "localhost:6379", TTL: time.Hour},
		Render: RenderConfig{
			SizePx:       qrrender.DefaultSizePx,
			Margin:       qrrender.DefaultMargin,
			Encoder:      qrrender.EncoderYeqown,
			GradientFrom: "#0499E9",
			GradientTo:   "#F42828",
			FinderColor:  "#0499E9",
		},
		Logger: logging.Config{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load reads the file named by CONFIG_PATH (default config.yaml). A missing
// file yields the defaults. Environment overrides are applied last.
func Load() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path over the defaults, applies
// environment overrides and validates the result.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Server.PortAttempts < 0 {
		return errors.New("server.port_attempts must not be negative")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is empty")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is empty")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is empty")
	}
	if c.Render.SizePx <= 0 {
		return errors.New("render.size_px must be positive")
	}
	if c.Render.Margin < 0 {
		return errors.New("render.margin must not be negative")
	}
	if c.Render.Workers < 0 {
		return errors.New("render.workers must not be negative")
	}
	if _, err := qrrender.NewEncoder(c.Render.Encoder); err != nil {
		return fmt.Errorf("render.encoder: %w", err)
	}
	if _, err := c.Render.Style(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
