package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"membership-gateway/internal/config"
	"membership-gateway/membership"
	"membership-gateway/membership/application"
	"membership-gateway/membership/domain"
	"membership-gateway/membership/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger ainda não existe: a config define nível e formato
		zap.NewExample().Fatal("config error", zap.Error(err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		zap.NewExample().Fatal("logger error", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return err
		}
	}

	vkOpts := []infra.VKOption{
		infra.WithHTTPClient(&http.Client{Timeout: cfg.VKTimeout}),
		infra.WithAPIVersion(cfg.VKAPIVersion),
		infra.WithAPILang(cfg.VKAPILang),
		infra.WithLogger(logger.Named("vk")),
	}
	if cfg.VKRPS > 0 {
		tokenLimits := infra.NewLimiterStore(cfg.VKRPS, cfg.VKBurst)
		tokenLimits.StartJanitor(ctx)
		vkOpts = append(vkOpts, infra.WithTokenLimiter(tokenLimits))
	}
	vk, err := infra.NewVKClient(cfg.VKAPIURL, vkOpts...)
	if err != nil {
		return err
	}

	var store domain.ResultStore
	switch cfg.CacheBackend {
	case config.BackendRedis:
		store = infra.NewRedisResultStore(rdb,
			infra.WithResultPrefix(cfg.CacheRedisPrefix),
			infra.WithRedisResultTTL(cfg.CacheTTL),
		)
	default:
		store = infra.NewMemoryResultStore(
			infra.WithResultTTL(cfg.CacheTTL),
			infra.WithMaxEntries(cfg.CacheMaxEntries),
		)
	}

	var stats domain.StatsStore
	if cfg.StatsEnabled {
		switch cfg.StatsBackend {
		case config.BackendRedis:
			stats = infra.NewRedisStatsStore(rdb,
				infra.WithStatsPrefix(cfg.StatsRedisPrefix),
				infra.WithStatsTTL(cfg.StatsTTL),
				infra.WithStatsTrackGroups(cfg.StatsTrackGroups),
			)
		default:
			stats = infra.NewMemoryStatsStore(infra.WithTrackGroups(cfg.StatsTrackGroups))
		}
	}

	cache := application.NewResponseCache(store, application.Service{Upstream: vk}, logger.Named("cache"))
	handler := membership.NewHandler(cache, stats, logger.Named("http"),
		membership.WithAdminCredentials(cfg.AdminUser, cfg.AdminPassword),
	)

	extra := []func(http.Handler) http.Handler{
		membership.ConcurrencyMiddleware(membership.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.ConcurrencyTimeout,
		}),
	}
	if cfg.RateEnabled {
		clientLimits := infra.NewLimiterStore(cfg.RateRPS, cfg.RateBurst)
		clientLimits.StartJanitor(ctx)
		extra = append([]func(http.Handler) http.Handler{
			membership.RateLimitMiddleware(membership.RateLimitOptions{
				Limiter:    clientLimits,
				RetryAfter: cfg.RetryAfter,
			}),
		}, extra...)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.Routes(extra...),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("vk_api_url", cfg.VKAPIURL),
		zap.String("vk_api_version", cfg.VKAPIVersion),
	)
	logger.Info("cache",
		zap.String("backend", cfg.CacheBackend),
		zap.Duration("ttl", cfg.CacheTTL),
		zap.Int("max_entries", cfg.CacheMaxEntries),
	)
	logger.Info("limits",
		zap.Float64("vk_rps", cfg.VKRPS),
		zap.Int("vk_burst", cfg.VKBurst),
		zap.Bool("rate_enabled", cfg.RateEnabled),
		zap.Float64("rate_rps", cfg.RateRPS),
		zap.Int("rate_burst", cfg.RateBurst),
		zap.Int("concurrency_max", cfg.ConcurrencyMax),
		zap.Duration("concurrency_timeout", cfg.ConcurrencyTimeout),
	)
	logger.Info("stats", zap.Bool("enabled", cfg.StatsEnabled), zap.String("backend", cfg.StatsBackend))
	logger.Info("admin routes", zap.Bool("enabled", cfg.AdminEnabled()))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	return zc.Build()
}
