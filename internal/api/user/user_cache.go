package user

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ UserRepo = (*CachedUserRepo)(nil)

const statsCacheKey = "city-age-stats"

// CachedUserRepo decorates a UserRepo with an in-process cache for the stats
// aggregation. Every mutation invalidates the cached groups, so reads after a
// write always reflect the store.
type CachedUserRepo struct {
	inner  UserRepo
	cache  *gocache.Cache
	logger *slog.Logger
}

func NewCachedUserRepo(inner UserRepo, ttl time.Duration, logger *slog.Logger) *CachedUserRepo {
	return &CachedUserRepo{
		inner:  inner,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (c *CachedUserRepo) CityAgeStats(ctx context.Context) ([]CityAgeStat, error) {
	if cached, ok := c.cache.Get(statsCacheKey); ok {
		c.logger.DebugContext(ctx, "City age stats served from cache")
		return cached.([]CityAgeStat), nil
	}

	stats, err := c.inner.CityAgeStats(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(statsCacheKey, stats)
	return stats, nil
}

func (c *CachedUserRepo) Insert(ctx context.Context, params CreateUserParams) (*User, error) {
	created, err := c.inner.Insert(ctx, params)
	if err == nil {
		c.cache.Delete(statsCacheKey)
	}
	return created, err
}

func (c *CachedUserRepo) UpdateByID(ctx context.Context, id string, params UpdateUserParams) (*User, error) {
	updated, err := c.inner.UpdateByID(ctx, id, params)
	if err == nil && updated != nil {
		c.cache.Delete(statsCacheKey)
	}
	return updated, err
}

func (c *CachedUserRepo) DeleteByID(ctx context.Context, id string) (*User, error) {
	deleted, err := c.inner.DeleteByID(ctx, id)
	if err == nil && deleted != nil {
		c.cache.Delete(statsCacheKey)
	}
	return deleted, err
}

func (c *CachedUserRepo) FindPage(ctx context.Context, sortField string, ascending bool, skip, limit int64) ([]User, error) {
	return c.inner.FindPage(ctx, sortField, ascending, skip, limit)
}

func (c *CachedUserRepo) CountAll(ctx context.Context) (int64, error) {
	return c.inner.CountAll(ctx)
}

func (c *CachedUserRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error) {
	return c.inner.FindByEmailOrUsername(ctx, email, username)
}
