package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-synth/internal/engine"
	"github.com/miradorstack/mirador-synth/internal/generators"
	"github.com/miradorstack/mirador-synth/internal/models"
	"github.com/miradorstack/mirador-synth/internal/utils"
)

// Config captures every setting needed to boot the synthetic data engine.
type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Logging    LoggingConfig            `yaml:"logging"`
	Generation GenerationConfig         `yaml:"generation"`
	Metrics    generators.MetricsConfig `yaml:"metrics"`
	Traces     generators.TraceConfig   `yaml:"traces"`
	Logs       generators.LogConfig     `yaml:"logs"`
	Alerts     AlertsConfig             `yaml:"alerts"`
	Cache      CacheConfig              `yaml:"cache"`
}

// ServerConfig controls the operational listeners used in live mode.
type ServerConfig struct {
	HealthAddress   string        `yaml:"healthAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// GenerationConfig controls what a run covers and how often live mode refreshes.
type GenerationConfig struct {
	// Seed fixes the kernel seed; zero draws from the clock.
	Seed int64 `yaml:"seed"`
	// Window is the range ending now that each run covers, e.g. "24h" or "7d".
	Window          string        `yaml:"window"`
	RefreshSchedule string        `yaml:"refreshSchedule"`
	RefreshTimeout  time.Duration `yaml:"refreshTimeout"`
	Live            bool          `yaml:"live"`
	TraceCount      int           `yaml:"traceCount"`
	CorrelateLogs   bool          `yaml:"correlateLogs"`
}

// AlertsConfig adds the rule pack location to the alert generator settings.
type AlertsConfig struct {
	RulesPath string `yaml:"rulesPath"`

	generators.AlertConfig `yaml:",inline"`
}

// CacheConfig controls Valkey-backed dataset snapshots.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	SnapshotKey  string        `yaml:"snapshotKey"`
	SnapshotTTL  time.Duration `yaml:"snapshotTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_SYNTH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	eng := engine.DefaultConfig()
	return Config{
		Server: ServerConfig{
			HealthAddress:   ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Generation: GenerationConfig{
			Window:          "24h",
			RefreshSchedule: "@every 5m",
			RefreshTimeout:  2 * time.Minute,
			TraceCount:      eng.TraceCount,
			CorrelateLogs:   eng.CorrelateLogs,
		},
		Metrics: eng.Metrics,
		Traces:  eng.Traces,
		Logs:    eng.Logs,
		Alerts:  AlertsConfig{AlertConfig: eng.Alerts},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			SnapshotKey:  "mirador-synth:snapshot",
			SnapshotTTL:  time.Hour,
		},
	}
}

// WindowDuration parses Generation.Window.
func (c *Config) WindowDuration() (time.Duration, error) {
	d, err := utils.ParseWindow(c.Generation.Window)
	if err != nil {
		return 0, utils.InvalidConfig("config.Generation", "%v", err)
	}
	if d <= 0 {
		return 0, utils.InvalidConfig("config.Generation", "window must be positive, got %s", c.Generation.Window)
	}
	return d, nil
}

// EngineConfig maps the generator sections onto an engine configuration.
func (c *Config) EngineConfig(rules []models.AlertRule) engine.Config {
	return engine.Config{
		Metrics:       c.Metrics,
		Traces:        c.Traces,
		TraceCount:    c.Generation.TraceCount,
		Logs:          c.Logs,
		CorrelateLogs: c.Generation.CorrelateLogs,
		Alerts:        c.Alerts.AlertConfig,
		Rules:         rules,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIRADOR_SYNTH_HEALTH_ADDRESS"); v != "" {
		cfg.Server.HealthAddress = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MIRADOR_SYNTH_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Generation.Seed = seed
		}
	}
	if v := os.Getenv("MIRADOR_SYNTH_WINDOW"); v != "" {
		cfg.Generation.Window = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_REFRESH_SCHEDULE"); v != "" {
		cfg.Generation.RefreshSchedule = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_LIVE"); v != "" {
		cfg.Generation.Live = isTrue(v)
	}
	if v := os.Getenv("MIRADOR_SYNTH_TRACE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generation.TraceCount = n
		}
	}
	if v := os.Getenv("MIRADOR_SYNTH_SERVICES"); v != "" {
		services := splitList(v)
		cfg.Metrics.Services = services
		cfg.Traces.Services = services
		cfg.Logs.Services = services
		cfg.Alerts.Services = services
	}
	if v := os.Getenv("MIRADOR_SYNTH_RULES_PATH"); v != "" {
		cfg.Alerts.RulesPath = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTrue(v)
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_TLS"); isTrue(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_SNAPSHOT_KEY"); v != "" {
		cfg.Cache.SnapshotKey = v
	}
	if v := os.Getenv("MIRADOR_SYNTH_CACHE_SNAPSHOT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.SnapshotTTL = d
		}
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
