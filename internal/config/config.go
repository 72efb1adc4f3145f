// Package config loads server settings from an optional YAML file and
// HEXCOLONY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"hexcolony/internal/domain/terrain"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath       = "HEXCOLONY_CONFIG"
	EnvDSN              = "HEXCOLONY_DB_DSN"
	EnvHTTPAddr         = "HEXCOLONY_HTTP_ADDR"
	EnvWSAddr           = "HEXCOLONY_WS_ADDR"
	EnvNamespace        = "HEXCOLONY_NAMESPACE"
	EnvSeed             = "HEXCOLONY_SEED"
	EnvSeedPhrase       = "HEXCOLONY_SEED_PHRASE"
	EnvEnforceAdjacency = "HEXCOLONY_ENFORCE_ADJACENCY"
	EnvLogLevel         = "HEXCOLONY_LOG_LEVEL"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	HTTPAddr  string          `yaml:"http_addr"`
	WSAddr    string          `yaml:"ws_addr"`
	Store     StoreConfig     `yaml:"store"`
	World     WorldConfig     `yaml:"world"`
	Capture   CaptureConfig   `yaml:"capture"`
	Colony    ColonyConfig    `yaml:"colony"`
	Channel   ChannelConfig   `yaml:"channel"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects the territory store. Namespace is the collection
// path/version: every table of one deployment carries it as a prefix.
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Namespace string `yaml:"namespace"`
}

type WorldConfig struct {
	Seed       int64          `yaml:"seed"`
	SeedPhrase string         `yaml:"seed_phrase"`
	Terrain    terrain.Config `yaml:"terrain"`
}

type CaptureConfig struct {
	EnforceAdjacency bool `yaml:"enforce_adjacency"`
	MaxAttempts      int  `yaml:"max_attempts"`
}

type ColonyConfig struct {
	VisibilityRadius int `yaml:"visibility_radius"`
}

type ChannelConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func Defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		WSAddr:   ":8081",
		Store:    StoreConfig{Driver: DriverPostgres},
		World:    WorldConfig{Seed: 1337, Terrain: terrain.DefaultConfig()},
		Capture:  CaptureConfig{EnforceAdjacency: true, MaxAttempts: 3},
		Colony:   ColonyConfig{VisibilityRadius: 2},
		Channel: ChannelConfig{
			QueueSize:    64,
			PingInterval: 30 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{PerSecond: 10, Burst: 20},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by HEXCOLONY_CONFIG, then applies the
// remaining HEXCOLONY_* overrides.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg, err := Load(getenv(EnvConfigPath))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(EnvHTTPAddr, &c.HTTPAddr)
	str(EnvWSAddr, &c.WSAddr)
	str(EnvDSN, &c.Store.DSN)
	str(EnvNamespace, &c.Store.Namespace)
	str(EnvSeedPhrase, &c.World.SeedPhrase)
	str(EnvLogLevel, &c.Log.Level)

	if v := strings.TrimSpace(getenv(EnvSeed)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvSeed, err)
		}
		c.World.Seed = n
		c.World.SeedPhrase = ""
	}
	if v := strings.TrimSpace(getenv(EnvEnforceAdjacency)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvEnforceAdjacency, err)
		}
		c.Capture.EnforceAdjacency = b
	}
	return nil
}

func (c *Config) Normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = DriverPostgres
	}
	c.Store.Namespace = strings.TrimSpace(c.Store.Namespace)
	if c.World.SeedPhrase != "" {
		c.World.Seed = terrain.SeedFromPhrase(c.World.SeedPhrase)
	}
	if c.World.Terrain == (terrain.Config{}) {
		c.World.Terrain = terrain.DefaultConfig()
	}
	if c.Capture.MaxAttempts <= 0 {
		c.Capture.MaxAttempts = 3
	}
	if c.Colony.VisibilityRadius <= 0 {
		c.Colony.VisibilityRadius = 2
	}
	if c.Channel.QueueSize <= 0 {
		c.Channel.QueueSize = 64
	}
	if c.Channel.PingInterval <= 0 {
		c.Channel.PingInterval = 30 * time.Second
	}
	if c.Channel.WriteTimeout <= 0 {
		c.Channel.WriteTimeout = 5 * time.Second
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn (or %s) is required for the postgres driver", EnvDSN))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of postgres, memory", c.Store.Driver))
	}
	if err := c.World.Terrain.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Colony.VisibilityRadius > 8 {
		errs = append(errs, errors.New("colony.visibility_radius must be at most 8"))
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalid}, errs...)...)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
}
