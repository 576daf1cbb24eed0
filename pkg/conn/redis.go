package conn

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisHost        = "localhost"
	defaultRedisPort        = 6379
	defaultRedisDialTimeout = 5 * time.Second
)

// RedisOption defines connection options for Redis.
type RedisOption struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// NewRedis creates a Redis client from the provided options. The client
// connects lazily; callers probe reachability with Ping.
func NewRedis(option RedisOption) *redis.Client {
	host := option.Host
	if host == "" {
		host = defaultRedisHost
	}

	port := option.Port
	if port == 0 {
		port = defaultRedisPort
	}

	return redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		DB:           option.DB,
		Password:     option.Password,
		DialTimeout:  defaultRedisDialTimeout,
		ReadTimeout:  -1, // subscriptions block on ReceiveMessage
		WriteTimeout: defaultRedisDialTimeout,
	})
}
