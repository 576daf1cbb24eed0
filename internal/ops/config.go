package ops

import (
	"encoding/json"
	"os"
	"time"

	"main/internal/breaker"
	"main/internal/cache"
	"main/pkg/conn"
)

// Named protected dependencies with pre-tuned breakers.
const (
	BreakerBinanceAPI = "binance-api"
	BreakerDatabase   = "database"
)

// FileConfig mirrors the JSON config layout. Every section is optional;
// zero values fall back to defaults so the services run with no config
// file at all (fallback mode everywhere).
type FileConfig struct {
	Source   string                   `json:"source"`
	Redis    RedisConfig              `json:"redis"`
	Postgres PostgresConfig           `json:"postgres"`
	Broker   BrokerConfig             `json:"broker"`
	Breakers map[string]BreakerConfig `json:"breakers"`
	Cache    CacheConfig              `json:"cache"`
	Feed     FeedConfig               `json:"feed"`
}

// RedisConfig locates the pub/sub transport and the cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DB       int    `json:"db"`
	CacheDB  int    `json:"cacheDb"`
	Password string `json:"password"`
}

// PostgresConfig locates the signal history database.
type PostgresConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// BrokerConfig tunes the message broker.
type BrokerConfig struct {
	FallbackDepth int `json:"fallbackDepth"`
}

// BreakerConfig tunes one named circuit breaker.
type BreakerConfig struct {
	FailureThreshold  int           `json:"failureThreshold"`
	Timeout           time.Duration `json:"timeout"`
	HalfOpenSuccesses int           `json:"halfOpenSuccesses"`
}

// CacheConfig tunes the in-memory cache fallback.
type CacheConfig struct {
	MaxEntries    int           `json:"maxEntries"`
	SweepInterval time.Duration `json:"sweepInterval"`
}

// FeedConfig selects the market data feed symbols.
type FeedConfig struct {
	Enabled bool     `json:"enabled"`
	Symbols []string `json:"symbols"`
}

// Load reads a JSON config file. An empty path yields pure defaults.
func Load(path string) (FileConfig, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// defaults mirrors the pre-tuned breakers for the exchange API and the
// database, the two dependencies every service talks to.
func defaults() FileConfig {
	return FileConfig{
		Breakers: map[string]BreakerConfig{
			BreakerBinanceAPI: {FailureThreshold: 3, Timeout: 30 * time.Second},
			BreakerDatabase:   {FailureThreshold: 5, Timeout: 60 * time.Second},
		},
	}
}

// BreakerFor resolves the breaker tuning for a named dependency,
// falling back to the breaker package defaults for unknown names.
func (c FileConfig) BreakerFor(name string) breaker.Config {
	bc := c.Breakers[name]
	return breaker.Config{
		Name:              name,
		FailureThreshold:  bc.FailureThreshold,
		Timeout:           bc.Timeout,
		HalfOpenSuccesses: bc.HalfOpenSuccesses,
	}
}

// RedisOption builds the transport connection options.
func (c FileConfig) RedisOption() conn.RedisOption {
	return conn.RedisOption{
		Host:     c.Redis.Host,
		Port:     c.Redis.Port,
		DB:       c.Redis.DB,
		Password: c.Redis.Password,
	}
}

// CacheRedisOption builds the cache connection options; the cache uses
// its own logical database.
func (c FileConfig) CacheRedisOption() conn.RedisOption {
	opt := c.RedisOption()
	opt.DB = c.Redis.CacheDB
	if opt.DB == 0 {
		opt.DB = 1
	}
	return opt
}

// CacheConfigValue builds the cache package config.
func (c FileConfig) CacheConfigValue() cache.Config {
	return cache.Config{
		MaxEntries:    c.Cache.MaxEntries,
		SweepInterval: c.Cache.SweepInterval,
	}
}

// PGOption builds the history database connection options.
func (c FileConfig) PGOption() conn.PGOption {
	return conn.PGOption{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
		Database: c.Postgres.Database,
	}
}
