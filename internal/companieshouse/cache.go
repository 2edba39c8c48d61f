package companieshouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
)

const cacheKeyPrefix = "ch:profile:"

// cachingFetcher fronts the API fetcher with a redis profile cache so a
// sweep over the whole client book does not re-hit the register for every
// page load in between. A nil redis client degrades to pass-through.
type cachingFetcher struct {
	inner Fetcher
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachingFetcher(inner Fetcher, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) Fetcher {
	if rdb == nil || ttl <= 0 {
		return inner
	}
	return &cachingFetcher{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   logger.Named("companieshouse.cache"),
	}
}

func (c *cachingFetcher) GetCompanyProfile(ctx context.Context, companyNumber string) (*clientdomain.RegistryProfile, error) {
	key := cacheKeyPrefix + NormalizeCompanyNumber(companyNumber)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var profile clientdomain.RegistryProfile
		if err := json.Unmarshal(raw, &profile); err == nil {
			return &profile, nil
		}
		// Unreadable entry, fall through to a fresh fetch.
		c.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
	}

	profile, err := c.inner.GetCompanyProfile(ctx, companyNumber)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(profile); err == nil {
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.log.Warn("profile cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return profile, nil
}

// Invalidate drops the cached profile so the next refresh hits the API.
func Invalidate(ctx context.Context, rdb *redis.Client, companyNumber string) error {
	if rdb == nil {
		return nil
	}
	key := cacheKeyPrefix + NormalizeCompanyNumber(companyNumber)
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}
