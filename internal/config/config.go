package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZIT_REDIS_ADDR.
const EnvPrefix = "QUIZIT_"

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port" env:"PORT"`
		Mode         string   `yaml:"mode" env:"MODE"`
		ReadTimeout  string   `yaml:"read_timeout" env:"READ_TIMEOUT"`
		WriteTimeout string   `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
		CORSOrigins  []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
		AdminToken   string   `yaml:"admin_token" env:"ADMIN_TOKEN"`
	} `yaml:"server" envPrefix:"SERVER_"`
	Log struct {
		Level string `yaml:"level" env:"LEVEL"`
		File  string `yaml:"file" env:"FILE"`
	} `yaml:"log" envPrefix:"LOG_"`
	Redis struct {
		Addr     string `yaml:"addr" env:"ADDR"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db" env:"DB"`
		TTL      string `yaml:"ttl" env:"TTL"`
	} `yaml:"redis" envPrefix:"REDIS_"`
	Postgres struct {
		URL string `yaml:"url" env:"URL"`
	} `yaml:"postgres" envPrefix:"POSTGRES_"`
	Quiz struct {
		TTL string `yaml:"ttl" env:"TTL"`
	} `yaml:"quiz" envPrefix:"QUIZ_"`
	Session struct {
		// Backend is memory, redis or postgres. Empty picks redis, then postgres, then memory,
		// depending on what is configured.
		Backend string `yaml:"backend" env:"BACKEND"`
	} `yaml:"session" envPrefix:"SESSION_"`
	Proctoring struct {
		MaxWarnings int    `yaml:"max_warnings" env:"MAX_WARNINGS"`
		Debounce    string `yaml:"debounce" env:"DEBOUNCE"`
	} `yaml:"proctoring" envPrefix:"PROCTORING_"`
	Submission struct {
		GracePeriod string `yaml:"grace_period" env:"GRACE_PERIOD"`
	} `yaml:"submission" envPrefix:"SUBMISSION_"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "release"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Log.Level = "info"
	cfg.Redis.TTL = "24h"
	cfg.Quiz.TTL = "10m"
	cfg.Proctoring.MaxWarnings = 3
	cfg.Proctoring.Debounce = "1s"
	cfg.Submission.GracePeriod = "0s"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies QUIZIT_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SessionBackend resolves which store holds sessions and submissions.
func (c Config) SessionBackend() string {
	if c.Session.Backend != "" {
		return c.Session.Backend
	}
	switch {
	case c.Redis.Addr != "":
		return BackendRedis
	case c.Postgres.URL != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.SessionBackend() {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("session backend redis requires redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("session backend postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Proctoring.MaxWarnings < 0 {
		return fmt.Errorf("proctoring.max_warnings must not be negative")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
