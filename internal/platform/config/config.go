package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration.
type Config struct {
	Addr        string
	DatabaseURL string
	Redis       RedisConfig

	ListCacheTTL  time.Duration
	StatsCacheTTL time.Duration

	DefaultPageSize int
}

// RedisConfig holds connection settings for the optional Redis-backed
// query cache. An empty URL means Redis is not configured and the
// in-process cache is used instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CLAIM_INTAKE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Config{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Redis:           redisFromEnv(),
		ListCacheTTL:    durationEnv("LIST_CACHE_TTL", 5*time.Minute),
		StatsCacheTTL:   durationEnv("STATS_CACHE_TTL", 2*time.Minute),
		DefaultPageSize: intEnv("DEFAULT_PAGE_SIZE", 10),
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     intEnv("REDIS_POOL_SIZE", 10),
		MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
