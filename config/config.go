// Package config loads database settings from YAML files and TORM_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shrek82/torm/dialect"
	"github.com/shrek82/torm/logger"
	"github.com/shrek82/torm/pool"
)

var ErrInvalidConfig = errors.New("torm: invalid config")

// Config describes one database and the middleware around it.
type Config struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	Log     LogConfig     `yaml:"log"`
	Cache   CacheConfig   `yaml:"cache"`
	Breaker BreakerConfig `yaml:"breaker"`
}

type LogConfig struct {
	Level         string        `yaml:"level"`
	Format        string        `yaml:"format"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	SlowLogPath   string        `yaml:"slow_log_path"`
}

// CacheConfig enables the read caches. They may be combined; they are then
// consulted in the order memory, file directory, Redis.
type CacheConfig struct {
	Memory        bool          `yaml:"memory"`
	Dir           string        `yaml:"dir"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// BreakerConfig enables the circuit breaker when Threshold is positive.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// Default returns the settings used for anything a file or the environment leaves unset.
func Default() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		Log: LogConfig{
			Level:  "info",
			Format: string(logger.LogFormatText),
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Breaker: BreakerConfig{
			ResetTimeout: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("torm: read config: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// FromEnv builds a config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return Parse(nil, os.LookupEnv)
}

// Parse decodes YAML data over the defaults, then applies overrides from lookup.
func Parse(data []byte, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = d
		return nil
	}

	str("TORM_DRIVER", &c.Driver)
	str("TORM_DSN", &c.DSN)
	str("TORM_USERNAME", &c.Username)
	str("TORM_PASSWORD", &c.Password)
	str("TORM_LOG_LEVEL", &c.Log.Level)
	str("TORM_LOG_FORMAT", &c.Log.Format)
	str("TORM_SLOW_LOG_PATH", &c.Log.SlowLogPath)
	str("TORM_CACHE_DIR", &c.Cache.Dir)
	str("TORM_REDIS_ADDR", &c.Cache.RedisAddr)
	str("TORM_REDIS_PASSWORD", &c.Cache.RedisPassword)
	if v, ok := lookup("TORM_CACHE_MEMORY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: TORM_CACHE_MEMORY: %v", ErrInvalidConfig, err)
		}
		c.Cache.Memory = b
	}

	return errors.Join(
		num("TORM_MAX_OPEN_CONNS", &c.MaxOpenConns),
		num("TORM_MAX_IDLE_CONNS", &c.MaxIdleConns),
		num("TORM_REDIS_DB", &c.Cache.RedisDB),
		num("TORM_BREAKER_THRESHOLD", &c.Breaker.Threshold),
		dur("TORM_CONN_MAX_LIFETIME", &c.ConnMaxLifetime),
		dur("TORM_SLOW_THRESHOLD", &c.Log.SlowThreshold),
		dur("TORM_CACHE_TTL", &c.Cache.TTL),
		dur("TORM_BREAKER_RESET_TIMEOUT", &c.Breaker.ResetTimeout),
	)
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("%w: driver is required", ErrInvalidConfig)
	}
	if _, ok := dialect.Get(c.Driver); !ok {
		return fmt.Errorf("%w: no dialect for driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn is required", ErrInvalidConfig)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("%w: connection limits must not be negative", ErrInvalidConfig)
	}
	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("%w: max_idle_conns %d exceeds max_open_conns %d", ErrInvalidConfig, c.MaxIdleConns, c.MaxOpenConns)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch logger.LogFormat(c.Log.Format) {
	case logger.LogFormatText, logger.LogFormatJSON:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Breaker.Threshold < 0 {
		return fmt.Errorf("%w: breaker threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PoolOptions returns the connection pool limits.
func (c Config) PoolOptions() *pool.Options {
	return &pool.Options{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// ConnString returns the DSN with Username and Password applied. URL DSNs
// get them as user info; PostgreSQL keyword DSNs get user= and password=.
// Other DSNs are returned unchanged.
func (c Config) ConnString() string {
	if c.Username == "" {
		return c.DSN
	}
	if strings.Contains(c.DSN, "://") {
		u, err := url.Parse(c.DSN)
		if err != nil {
			return c.DSN
		}
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
		return u.String()
	}
	if c.Driver == "postgres" {
		s := c.DSN + " user=" + c.Username
		if c.Password != "" {
			s += " password=" + c.Password
		}
		return s
	}
	return c.DSN
}
