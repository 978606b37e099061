package config

import (
  "fmt"
  "os"
  "strings"
  "time"

  "gopkg.in/yaml.v3"

  "github.com/conservaproj/conserva-backend/internal/logger"
  "github.com/conservaproj/conserva-backend/internal/utils"
)

type Config struct {
  Server   ServerConfig   `yaml:"server"`
  Forecast ForecastConfig `yaml:"forecast"`
  Cache    CacheConfig    `yaml:"cache"`
}

type ServerConfig struct {
  Port        string   `yaml:"port"`
  CORSOrigins []string `yaml:"cors_origins"`
}

type ForecastConfig struct {
  BaseURL        string `yaml:"base_url"`
  TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (f ForecastConfig) Timeout() time.Duration {
  return time.Duration(f.TimeoutSeconds) * time.Second
}

type CacheConfig struct {
  RedisAddr  string `yaml:"redis_addr"`
  TTLSeconds int    `yaml:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
  return time.Duration(c.TTLSeconds) * time.Second
}

func defaults() *Config {
  return &Config{
    Server: ServerConfig{
      Port: "8080",
      CORSOrigins: []string{
        "http://localhost:3000",
        "http://localhost:5174",
      },
    },
    Forecast: ForecastConfig{
      TimeoutSeconds: 300,
    },
    Cache: CacheConfig{
      TTLSeconds: 300,
    },
  }
}

// Load reads the optional YAML config file, then applies environment
// overrides on top. A missing file at the default path is fine; a file that
// exists but does not parse is an error.
func Load(path string, log *logger.Logger) (*Config, error) {
  cfg := defaults()

  explicit := strings.TrimSpace(path) != ""
  if !explicit {
    path = "config.yaml"
  }
  raw, err := os.ReadFile(path)
  switch {
  case err == nil:
    if err := yaml.Unmarshal(raw, cfg); err != nil {
      return nil, fmt.Errorf("parse config %s: %w", path, err)
    }
    if log != nil {
      log.Info("Loaded config file", "path", path)
    }
  case os.IsNotExist(err) && !explicit:
    if log != nil {
      log.Debug("No config file found, using defaults", "path", path)
    }
  default:
    return nil, fmt.Errorf("read config %s: %w", path, err)
  }

  applyEnv(cfg, log)
  return cfg, nil
}

func applyEnv(cfg *Config, log *logger.Logger) {
  cfg.Server.Port = utils.GetEnv("PORT", cfg.Server.Port, log)
  if origins := utils.GetEnv("CORS_ORIGINS", "", log); origins != "" {
    parts := strings.Split(origins, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
      if p = strings.TrimSpace(p); p != "" {
        out = append(out, p)
      }
    }
    if len(out) > 0 {
      cfg.Server.CORSOrigins = out
    }
  }
  cfg.Forecast.BaseURL = utils.GetEnv("FORECAST_SERVICE_URL", cfg.Forecast.BaseURL, log)
  cfg.Forecast.TimeoutSeconds = utils.GetEnvAsInt("FORECAST_TIMEOUT_SECONDS", cfg.Forecast.TimeoutSeconds, log)
  cfg.Cache.RedisAddr = utils.GetEnv("REDIS_ADDR", cfg.Cache.RedisAddr, log)
  cfg.Cache.TTLSeconds = utils.GetEnvAsInt("CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds, log)
}
