// Package config loads retention.yaml, .env files and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"cohort-retention/pkg/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "retention.yaml"

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Drilldown DrilldownConfig `yaml:"drilldown"`
	Log       LogConfig       `yaml:"log"`
}

type SourceConfig struct {
	CSV        string `yaml:"csv"`
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	HasStatus  bool   `yaml:"hasStatus"`
	HasOrderID bool   `yaml:"hasOrderId"`
}

type AnalysisConfig struct {
	Granularity   models.Granularity `yaml:"granularity"`
	MaxAge        int                `yaml:"maxAge"`
	ScopeYear     int                `yaml:"scopeYear"`
	DropAgeZero   bool               `yaml:"dropAgeZero"`
	WeekdayMaxAge int                `yaml:"weekdayMaxAge"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"` // memory, redis or none
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DrilldownConfig struct {
	Parallelism int `yaml:"parallelism"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Source: SourceConfig{Table: "orders", HasStatus: true, HasOrderID: true},
		Analysis: AnalysisConfig{
			Granularity:   models.Month,
			MaxAge:        12,
			ScopeYear:     2023,
			DropAgeZero:   true,
			WeekdayMaxAge: 31,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    256,
			TTL:     time.Hour,
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "retention:"},
		},
		Server:    ServerConfig{Addr: ":8080"},
		Drilldown: DrilldownConfig{Parallelism: 4},
		Log:       LogConfig{Mode: "development"},
	}
}

// Load reads path over the defaults. A missing file at the default path is not an error.
// A .env file next to the process is loaded first, then RETENTION_* variables override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultFile:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RETENTION_CSV"); v != "" {
		cfg.Source.CSV = v
	}
	if v := os.Getenv("RETENTION_DSN"); v != "" {
		cfg.Source.DSN = v
	}
	if v := os.Getenv("RETENTION_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("RETENTION_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("RETENTION_CACHE"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("RETENTION_SCOPE_YEAR"); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.ScopeYear = y
		}
	}
	if v := os.Getenv("RETENTION_LOG_MODE"); v != "" {
		cfg.Log.Mode = v
	}
}

func validate(cfg *Config) error {
	switch cfg.Analysis.Granularity {
	case models.Day, models.Week, models.Month:
	default:
		return fmt.Errorf("analysis.granularity %q must be day, week or month", cfg.Analysis.Granularity)
	}
	if cfg.Analysis.MaxAge < 0 {
		return fmt.Errorf("analysis.maxAge must be >= 0")
	}
	if cfg.Analysis.WeekdayMaxAge < 1 {
		return fmt.Errorf("analysis.weekdayMaxAge must be >= 1")
	}
	switch cfg.Cache.Backend {
	case "memory":
		if cfg.Cache.Size < 1 {
			return fmt.Errorf("cache.size must be >= 1")
		}
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required when backend is redis")
		}
	case "none", "":
	default:
		return fmt.Errorf("cache.backend %q must be memory, redis or none", cfg.Cache.Backend)
	}
	if cfg.Drilldown.Parallelism < 1 {
		return fmt.Errorf("drilldown.parallelism must be >= 1")
	}
	return nil
}

// Params converts the analysis section into engine parameters.
func (c *Config) Params() models.Params {
	return models.Params{
		Granularity: c.Analysis.Granularity,
		MaxAge:      c.Analysis.MaxAge,
		Scope:       models.Scope{Year: c.Analysis.ScopeYear},
		DropAgeZero: c.Analysis.DropAgeZero,
	}
}
