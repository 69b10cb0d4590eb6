// Package config loads the YAML configuration of the support chat service.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Surface  string        `yaml:"surface"`
	Model    ModelConfig   `yaml:"model"`
	Backend  BackendConfig `yaml:"backend"`
	Store    StoreConfig   `yaml:"store"`
	Parser   ParserConfig  `yaml:"parser"`
	History  HistoryConfig `yaml:"history"`
}

// ModelConfig selects the chat model. An empty APIKey runs the local
// scripted assistant instead.
type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Language is the default reply language code.
	Language string `yaml:"language"`
}

// BackendConfig points at the booking function endpoints. An empty BaseURL
// runs against the in-process fake.
type BackendConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`
}

type StoreConfig struct {
	Kind      string `yaml:"kind"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

type ParserConfig struct {
	RepairThreshold int `yaml:"repair_threshold"`
}

type HistoryConfig struct {
	Limit int           `yaml:"limit"`
	TTL   time.Duration `yaml:"ttl"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Surface:  "ai_chat",
		Model: ModelConfig{
			Model:    "gpt-4o-mini",
			Language: "en",
		},
		Backend: BackendConfig{
			Timeout:   15 * time.Second,
			RateLimit: 5,
			Burst:     5,
		},
		Store: StoreConfig{
			Kind:      StoreMemory,
			Path:      "actionblock.db",
			Namespace: "actionblock",
		},
		Parser:  ParserConfig{RepairThreshold: 3},
		History: HistoryConfig{Limit: 200},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path loads defaults only.
func Load(path string) (*Config, error) {
	conf := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, conf); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	conf.applyEnv()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ACTIONBLOCK_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("ACTIONBLOCK_BACKEND_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("ACTIONBLOCK_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
		if c.Store.Kind == StoreMemory {
			c.Store.Kind = StoreRedis
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for sqlite"))
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	switch c.Surface {
	case "ai_chat", "live_chat":
	default:
		errs = append(errs, fmt.Errorf("unknown surface %q", c.Surface))
	}
	if c.Parser.RepairThreshold < 2 {
		errs = append(errs, fmt.Errorf("parser.repair_threshold must be at least 2, got %d", c.Parser.RepairThreshold))
	}
	if c.Backend.RateLimit < 0 {
		errs = append(errs, errors.New("backend.rate_limit must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ApplyLogLevel sets the level of the default slog logger.
func (c *Config) ApplyLogLevel() {
	slog.SetLogLoggerLevel(c.Level())
}
