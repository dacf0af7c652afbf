package reconcile

import (
	"context"
	"sync"
	"time"

	"provisioner/core/provision"

	"golang.org/x/sync/singleflight"
)

// lookupEntry holds the result of one reference search.
type lookupEntry struct {
	// ids are the matching identifiers.
	ids []provision.Identifier

	// built is the time the search completed.
	built time.Time
}

// lookupCache caches reference searches for the duration of one bulk run.
// A nil cache searches on every call.
type lookupCache struct {
	mu      sync.RWMutex
	entries map[string]lookupEntry
	sf      singleflight.Group
	ttl     time.Duration
}

func newLookupCache(ttl time.Duration) *lookupCache {
	return &lookupCache{entries: make(map[string]lookupEntry), ttl: ttl}
}

func (c *lookupCache) fresh(key string) ([]provision.Identifier, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Since(entry.built) > c.ttl {
		return nil, false
	}
	return entry.ids, true
}

// search returns the identifiers matching filter in target t. Concurrent identical
// searches share one adapter call.
func (c *lookupCache) search(ctx context.Context, t *Target, filter provision.SearchFilter) ([]provision.Identifier, error) {
	if c == nil {
		return t.search(ctx, filter)
	}
	key := t.ID() + "|" + filter.Base + "|" + string(filter.Scope) + "|" + filter.Attribute + "=" + filter.Value

	// Fast path
	if ids, ok := c.fresh(key); ok {
		return ids, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if ids, ok := c.fresh(key); ok {
			return ids, nil
		}

		ids, err := t.search(ctx, filter)
		if err != nil {
			return nil, err
		}

		if c.ttl > 0 {
			c.mu.Lock()
			c.entries[key] = lookupEntry{ids: ids, built: time.Now()}
			c.mu.Unlock()
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]provision.Identifier), nil
}

