// Package cache provides a Redis read-through cache for site records.
//
// Only the site record is cached. Access decisions are computed per
// request and never stored.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sagarc03/pagehaven"
)

const (
	keyPrefix  = "pagehaven:site:"
	DefaultTTL = 30 * time.Second
)

// Config describes the Redis connection.
type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// SiteCache wraps a SiteResolver. Redis failures are logged and the
// request falls through to the wrapped resolver.
type SiteCache struct {
	next   pagehaven.SiteResolver
	client redis.Cmdable
	ttl    time.Duration
}

func NewSiteCache(next pagehaven.SiteResolver, client redis.Cmdable, ttl time.Duration) *SiteCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SiteCache{next: next, client: client, ttl: ttl}
}

func key(subdomain string) string {
	return keyPrefix + strings.ToLower(subdomain)
}

// ResolveSite returns the cached site or loads it from the wrapped
// resolver. Misses (ErrNotFound) are not cached.
func (c *SiteCache) ResolveSite(ctx context.Context, subdomain string) (pagehaven.Site, error) {
	k := key(subdomain)

	raw, err := c.client.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var site pagehaven.Site
		jsonErr := json.Unmarshal(raw, &site)
		if jsonErr == nil {
			return site, nil
		}
		slog.Warn("discarding undecodable cached site", "subdomain", subdomain, "err", jsonErr)
	case errors.Is(err, redis.Nil):
	default:
		slog.Warn("site cache read failed", "subdomain", subdomain, "err", err)
	}

	site, err := c.next.ResolveSite(ctx, subdomain)
	if err != nil {
		return pagehaven.Site{}, err
	}

	data, err := json.Marshal(site)
	if err != nil {
		slog.Warn("failed to encode site for cache", "subdomain", subdomain, "err", err)
		return site, nil
	}

	if err := c.client.Set(ctx, k, data, c.ttl).Err(); err != nil {
		slog.Warn("site cache write failed", "subdomain", subdomain, "err", err)
	}

	return site, nil
}

// Invalidate drops the cached record of subdomain.
func (c *SiteCache) Invalidate(ctx context.Context, subdomain string) error {
	if err := c.client.Del(ctx, key(subdomain)).Err(); err != nil {
		return fmt.Errorf("invalidate site %s: %w", subdomain, err)
	}
	return nil
}
