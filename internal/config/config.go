// Package config lê a configuração do gateway a partir de variáveis de ambiente.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	ListenAddr string

	VKAPIURL     string
	VKAPIVersion string
	VKAPILang    string
	VKTimeout    time.Duration
	VKRPS        float64
	VKBurst      int

	CacheBackend     string
	CacheTTL         time.Duration
	CacheMaxEntries  int
	CacheRedisPrefix string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateEnabled bool
	RateRPS     float64
	RateBurst   int
	RetryAfter  time.Duration

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	StatsEnabled     bool
	StatsBackend     string
	StatsRedisPrefix string
	StatsTTL         time.Duration
	StatsTrackGroups bool

	AdminUser     string
	AdminPassword string

	LogLevel  string
	LogFormat string
}

// AdminEnabled indica se as rotas /admin devem ser montadas.
func (c Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPassword != ""
}

// UsesRedis indica se algum componente precisa de conexão com o Redis.
func (c Config) UsesRedis() bool {
	return c.CacheBackend == BackendRedis || (c.StatsEnabled && c.StatsBackend == BackendRedis)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")

	v.SetDefault("VK_API_URL", "https://api.vk.com/method")
	v.SetDefault("VK_API_VERSION", "5.131")
	v.SetDefault("VK_API_LANG", "0")
	v.SetDefault("VK_TIMEOUT", 10*time.Second)
	v.SetDefault("VK_RPS", 3)
	v.SetDefault("VK_BURST", 3)

	v.SetDefault("CACHE_BACKEND", BackendMemory)
	v.SetDefault("CACHE_TTL", 10*time.Minute)
	v.SetDefault("CACHE_MAX_ENTRIES", 10000)
	v.SetDefault("CACHE_REDIS_PREFIX", "membership:cache")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RATE_ENABLED", false)
	v.SetDefault("RATE_RPS", 10)
	v.SetDefault("RATE_BURST", 20)
	v.SetDefault("RETRY_AFTER", 1*time.Second)

	v.SetDefault("CONCURRENCY_MAX", 100)
	v.SetDefault("CONCURRENCY_TIMEOUT", 0)

	v.SetDefault("STATS_ENABLED", true)
	v.SetDefault("STATS_BACKEND", BackendMemory)
	v.SetDefault("STATS_REDIS_PREFIX", "membership:stats")
	v.SetDefault("STATS_TTL", 24*time.Hour)
	v.SetDefault("STATS_TRACK_GROUPS", false)

	v.SetDefault("ADMIN_USER", "admin")
	v.SetDefault("ADMIN_PASSWORD", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	return v
}

func Load() (Config, error) {
	v := newViper()

	cfg := Config{
		ListenAddr: v.GetString("LISTEN_ADDR"),

		VKAPIURL:     v.GetString("VK_API_URL"),
		VKAPIVersion: v.GetString("VK_API_VERSION"),
		VKAPILang:    v.GetString("VK_API_LANG"),
		VKTimeout:    v.GetDuration("VK_TIMEOUT"),
		VKRPS:        v.GetFloat64("VK_RPS"),
		VKBurst:      v.GetInt("VK_BURST"),

		CacheBackend:     strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
		CacheTTL:         v.GetDuration("CACHE_TTL"),
		CacheMaxEntries:  v.GetInt("CACHE_MAX_ENTRIES"),
		CacheRedisPrefix: v.GetString("CACHE_REDIS_PREFIX"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		RateEnabled: v.GetBool("RATE_ENABLED"),
		RateRPS:     v.GetFloat64("RATE_RPS"),
		RateBurst:   v.GetInt("RATE_BURST"),
		RetryAfter:  v.GetDuration("RETRY_AFTER"),

		ConcurrencyMax:     v.GetInt("CONCURRENCY_MAX"),
		ConcurrencyTimeout: v.GetDuration("CONCURRENCY_TIMEOUT"),

		StatsEnabled:     v.GetBool("STATS_ENABLED"),
		StatsBackend:     strings.ToLower(strings.TrimSpace(v.GetString("STATS_BACKEND"))),
		StatsRedisPrefix: v.GetString("STATS_REDIS_PREFIX"),
		StatsTTL:         v.GetDuration("STATS_TTL"),
		StatsTrackGroups: v.GetBool("STATS_TRACK_GROUPS"),

		AdminUser:     strings.TrimSpace(v.GetString("ADMIN_USER")),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.VKAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("VK_API_URL must be an absolute URL, got %q", c.VKAPIURL)
	}
	if c.VKRPS < 0 || c.VKBurst < 0 {
		return errors.New("VK_RPS and VK_BURST must be >= 0")
	}
	if c.VKRPS > 0 && c.VKBurst == 0 {
		return errors.New("VK_BURST must be > 0 when VK_RPS > 0")
	}
	if c.CacheBackend != BackendMemory && c.CacheBackend != BackendRedis {
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.CacheBackend)
	}
	if c.CacheTTL < 0 {
		return errors.New("CACHE_TTL must be >= 0")
	}
	if c.StatsEnabled && c.StatsBackend != BackendMemory && c.StatsBackend != BackendRedis {
		return fmt.Errorf("STATS_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.StatsBackend)
	}
	if c.UsesRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required when a redis backend is selected")
	}
	if c.RateEnabled && c.RateRPS <= 0 {
		return errors.New("RATE_RPS must be > 0")
	}
	if c.RateEnabled && c.RateBurst <= 0 {
		return errors.New("RATE_BURST must be > 0")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return nil
}
