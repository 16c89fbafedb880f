package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"stacksight/internal/cache"
)

// RowQuerier is the part of Querier the cached reader wraps.
type RowQuerier interface {
	ReturnRunQuery(ctx context.Context, query string, params Params) ([]Row, error)
}

// CacheStats counts cached reader lookups.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// CachedReader memoizes ReturnRunQuery for near-static reference data.
// Entries expire after the TTL and Invalidate drops everything, so callers
// that write to lookup tables can force a refresh.
type CachedReader struct {
	next   RowQuerier
	rows   *cache.LRUCache[[]Row]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedReader(next RowQuerier, ttl time.Duration, maxEntries int) *CachedReader {
	return &CachedReader{
		next: next,
		rows: cache.NewLRUCache[[]Row](maxEntries, ttl),
	}
}

// ReturnRunQuery returns the cached result for (query, params), querying
// on a miss. Concurrent misses for one key share a single query.
func (c *CachedReader) ReturnRunQuery(ctx context.Context, query string, params Params) ([]Row, error) {
	key := cacheKey(query, params)
	if rows, ok := c.rows.Get(key); ok {
		c.hits.Add(1)
		return copyRows(rows), nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		rows, err := c.next.ReturnRunQuery(ctx, query, params)
		if err != nil {
			return nil, err
		}
		c.rows.Set(key, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return copyRows(v.([]Row)), nil
}

// Invalidate drops every cached result.
func (c *CachedReader) Invalidate() int {
	return c.rows.Purge()
}

// CleanExpired implements cache.Cleaner.
func (c *CachedReader) CleanExpired() int {
	return c.rows.CleanExpired()
}

func (c *CachedReader) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.rows.Size(),
	}
}

// cacheKey renders the template and params in a canonical order so two
// structurally equal mappings share an entry.
func cacheKey(query string, params Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(query)
	for _, name := range names {
		fmt.Fprintf(&b, "\x00%s=%T:%v", name, params[name], params[name])
	}
	return b.String()
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = append(Row(nil), r...)
	}
	return out
}
