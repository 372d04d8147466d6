package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// DefaultDirName is the cache directory created under the user's home.
const DefaultDirName = ".omopcloudetl_core/cache"

// Cache backends.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// DefaultKeyPrefix namespaces entries in a shared Redis.
const DefaultKeyPrefix = "omopetl:"

// Config holds cache configuration.
type Config struct {
	// Backend selects the store: "local" (default) or "redis".
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir is the local cache directory. Empty means DefaultDir().
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Disabled turns caching off entirely.
	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
	// Redis configures the redis backend.
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds Redis connection settings for a shared cache.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `mapstructure:"addr" yaml:"addr"`
	// Password is the Redis server password.
	Password string `mapstructure:"password" yaml:"password"`
	// DB is the Redis database number.
	DB int `mapstructure:"db" yaml:"db"`
	// KeyPrefix is prepended to every key.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
	// TTL expires entries; zero keeps them until deleted.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size"`
	// DialTimeout bounds establishing new connections.
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	// ReadTimeout bounds socket reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// WriteTimeout bounds socket writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.Dir == "" {
		c.Dir = DefaultDir()
	}
	c.Redis.ApplyDefaults()
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *RedisConfig) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Validate checks that the cache configuration is valid.
func (c *Config) Validate() error {
	if c.Disabled {
		return nil
	}
	switch c.Backend {
	case BackendLocal:
		if c.Dir == "" {
			return errors.ConfigurationError("cache: dir is required", nil)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.ConfigurationError("cache: redis.addr is required for the redis backend", nil)
		}
		if c.Redis.TTL < 0 {
			return errors.ConfigurationError("cache: redis.ttl must not be negative", nil)
		}
	default:
		return errors.ConfigurationError("cache: unknown backend "+c.Backend, nil).
			WithDetail("backend", c.Backend)
	}
	return nil
}

// DefaultDir returns ~/.omopcloudetl_core/cache, falling back to the
// system temp directory when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), DefaultDirName)
	}
	return filepath.Join(home, DefaultDirName)
}
