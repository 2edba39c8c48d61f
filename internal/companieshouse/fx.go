package companieshouse

import (
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/numericalz/practicehub/internal/config"
)

var Module = fx.Module("companieshouse.service",
	fx.Provide(provideRedis),
	fx.Provide(provideFetcher),
	fx.Provide(NewSyncer),
)

func provideRedis(cfg config.Config, logger *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		logger.Named("companieshouse").Info("redis not configured, profile cache and sweep lock disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
}

func provideFetcher(cfg config.Config, rdb *redis.Client, logger *zap.Logger) Fetcher {
	api := NewAPIClient(cfg, logger)
	ttl := time.Duration(cfg.CompaniesHouse.CacheTTL) * time.Second
	return NewCachingFetcher(api, rdb, ttl, logger)
}
