package config

import (
  "os"
  "path/filepath"
  "testing"
)

func TestLoadDefaults(t *testing.T) {
  cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
  if err == nil {
    t.Fatalf("explicit missing path should error, got cfg=%+v", cfg)
  }

  cfg, err = Load("", nil)
  if err != nil {
    t.Fatalf("Load with defaults: %v", err)
  }
  if cfg.Server.Port != "8080" {
    t.Fatalf("default port: want=8080 got=%s", cfg.Server.Port)
  }
  if cfg.Forecast.TimeoutSeconds != 300 {
    t.Fatalf("default forecast timeout: want=300 got=%d", cfg.Forecast.TimeoutSeconds)
  }
}

func TestLoadFileAndEnvOverride(t *testing.T) {
  dir := t.TempDir()
  path := filepath.Join(dir, "config.yaml")
  body := `
server:
  port: "9090"
  cors_origins: ["https://app.example.org"]
forecast:
  base_url: "https://forecast.example.org"
  timeout_seconds: 120
cache:
  redis_addr: "localhost:6379"
  ttl_seconds: 60
`
  if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
    t.Fatalf("write config: %v", err)
  }

  cfg, err := Load(path, nil)
  if err != nil {
    t.Fatalf("Load: %v", err)
  }
  if cfg.Server.Port != "9090" {
    t.Fatalf("file port: want=9090 got=%s", cfg.Server.Port)
  }
  if cfg.Forecast.BaseURL != "https://forecast.example.org" {
    t.Fatalf("file base url: got=%s", cfg.Forecast.BaseURL)
  }
  if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.org" {
    t.Fatalf("file cors origins: got=%v", cfg.Server.CORSOrigins)
  }

  t.Setenv("FORECAST_SERVICE_URL", "https://override.example.org")
  t.Setenv("CACHE_TTL_SECONDS", "15")
  cfg, err = Load(path, nil)
  if err != nil {
    t.Fatalf("Load with env: %v", err)
  }
  if cfg.Forecast.BaseURL != "https://override.example.org" {
    t.Fatalf("env override base url: got=%s", cfg.Forecast.BaseURL)
  }
  if cfg.Cache.TTLSeconds != 15 {
    t.Fatalf("env override ttl: want=15 got=%d", cfg.Cache.TTLSeconds)
  }
}
