package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tryon-cli/internal/domain"
	"tryon-cli/internal/infra"
	"tryon-cli/internal/ports"
)

const (
	// DefaultCacheTTL bounds how long a fetched history page stays valid.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultRecentLimit caps the distinct results kept per fetch.
	DefaultRecentLimit = 5
)

// CacheOptions configures a RecencyCache. Zero values take the defaults.
type CacheOptions struct {
	TTL      time.Duration
	MaxItems int
	// FetchLimit is the raw page size requested from the history endpoint
	// before deduplication trims it down.
	FetchLimit int
	// Now is injectable for tests.
	Now    func() time.Time
	Logger *infra.Logger
}

// RecencyCache keeps the latest distinct generated assets for one
// (identity, store) key within a bounded time window, so a UI repeatedly
// asking "show me recent results" does not hammer the history endpoint.
//
// The cache holds a single slot: fetching under a different key evicts the
// previous entry. Key, items and timestamp are replaced together under the
// lock, and concurrent misses for one key collapse into a single live fetch,
// so the entry is never observed half-written.
type RecencyCache struct {
	history    ports.HistoryClient
	ttl        time.Duration
	maxItems   int
	fetchLimit int
	now        func() time.Time
	logger     *infra.Logger

	mu        sync.Mutex
	key       string
	items     []domain.ResultRef
	fetchedAt time.Time

	flight singleflight.Group
}

// NewRecencyCache constructs a RecencyCache over the given history client.
func NewRecencyCache(history ports.HistoryClient, opts CacheOptions) *RecencyCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultRecentLimit
	}
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = 20
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	return &RecencyCache{
		history:    history,
		ttl:        ttl,
		maxItems:   maxItems,
		fetchLimit: fetchLimit,
		now:        now,
		logger:     logger,
	}
}

// Recent returns the cached items when the key matches the previous fetch
// and the entry is younger than the TTL; otherwise it fetches live and
// replaces the entry. forceRefresh always fetches. The returned slice is the
// caller's to keep.
func (c *RecencyCache) Recent(ctx context.Context, identity, store string, forceRefresh bool) ([]domain.ResultRef, error) {
	key := cacheKey(identity, store)

	if !forceRefresh {
		c.mu.Lock()
		if c.key == key && !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
			items := append([]domain.ResultRef(nil), c.items...)
			c.mu.Unlock()
			c.logger.Debug().Str("key", key).Msg("recent results served from cache")
			return items, nil
		}
		c.mu.Unlock()
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		page, err := c.history.CustomerHistory(ctx, domain.HistoryQuery{
			Email: identity,
			Store: store,
			Page:  1,
			Limit: c.fetchLimit,
		})
		if err != nil {
			return nil, err
		}
		items := dedupeBySourceURL(page.Items, c.maxItems)

		c.mu.Lock()
		c.key = key
		c.items = items
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.logger.Debug().Str("key", key).Int("items", len(items)).Msg("recent results refreshed")
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.ResultRef(nil), v.([]domain.ResultRef)...), nil
}

func cacheKey(identity, store string) string {
	if store == "" {
		store = "none"
	}
	return identity + ":" + store
}

// dedupeBySourceURL keeps the first occurrence of each source URL, in fetch
// order, capped to max entries.
func dedupeBySourceURL(items []domain.ResultRef, max int) []domain.ResultRef {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.ResultRef, 0, max)
	for _, item := range items {
		if _, dup := seen[item.SourceURL]; dup {
			continue
		}
		seen[item.SourceURL] = struct{}{}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}
