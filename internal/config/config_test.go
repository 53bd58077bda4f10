package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "BASE_URL", "ADMIN_TOKEN", "DATABASE_URL", "REDIS_ADDR", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFrom_Valid(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, `server:
  addr: ":9000"
  base_url: "https://qr.example.com/"
store:
  driver: sqlite
  sqlite_path: /tmp/x.db
cache:
  enabled: true
  addr: "redis:6379"
  ttl: 10m
render:
  size_px: 512
  margin: 4
  encoder: skip2
  gradient_from: "#000"
  gradient_to: "#ff0000"
  finder_color: "112233"
`)
	cfg, err := LoadFrom(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://qr.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 512, cfg.Render.SizePx)
	assert.Equal(t, "skip2", cfg.Render.Encoder)

	style, err := cfg.Render.Style()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, style.Gradient.From)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, style.Gradient.To)
	assert.Equal(t, color.RGBA{0x11, 0x22, 0x33, 255}, style.Finder)
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		yml  string
	}{
		{name: "zero size", yml: "render:\n  size_px: 0\n"},
		{name: "negative margin", yml: "render:\n  margin: -1\n"},
		{name: "unknown encoder", yml: "render:\n  encoder: zxing\n"},
		{name: "bad colour", yml: "render:\n  gradient_to: nothex\n"},
		{name: "unknown driver", yml: "store:\n  driver: mysql\n"},
		{name: "postgres without dsn", yml: "store:\n  driver: postgres\n"},
		{name: "cache without addr", yml: "cache:\n  enabled: true\n  addr: \"\"\n"},
		{name: "bad yaml", yml: "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tc.yml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_UsesConfigPathEnv(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, "server:\n  addr: \":7777\"\n")
	t.Setenv("CONFIG_PATH", p)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("PORT", "8081")
	t.Setenv("ADMIN_TOKEN", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://u@db/qr")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("BASE_URL", "https://go.example.com//")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u@db/qr", cfg.Store.PostgresDSN)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "cache:6379", cfg.Cache.Addr)
	assert.Equal(t, "https://go.example.com", cfg.Server.BaseURL)
}
