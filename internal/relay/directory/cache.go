package directory

import (
	"context"
	"sync"

	"github.com/example/fleetrelay/internal/relay/domain"
)

// Cache memoizes driver profiles for the lifetime of a relay session,
// reading through to the durable store on a miss. Misses are never cached,
// so a driver registered after a failed lookup is picked up on the next
// attempt. Concurrent first lookups for the same id may race to populate
// the map; the record does not change mid-session, so last write wins.
type Cache struct {
	mu       sync.RWMutex
	store    domain.DirectoryStore
	profiles map[domain.DriverID]domain.DriverProfile
}

// NewCache constructs an empty cache over the given store.
func NewCache(store domain.DirectoryStore) *Cache {
	return &Cache{store: store, profiles: make(map[domain.DriverID]domain.DriverProfile)}
}

// Resolve returns the cached profile or loads it from the store.
func (c *Cache) Resolve(ctx context.Context, id domain.DriverID) (domain.DriverProfile, error) {
	c.mu.RLock()
	profile, ok := c.profiles[id]
	c.mu.RUnlock()
	if ok {
		return profile, nil
	}

	profile, err := c.store.GetDriver(ctx, id)
	if err != nil {
		return domain.DriverProfile{}, err
	}

	c.mu.Lock()
	c.profiles[id] = profile
	c.mu.Unlock()
	return profile, nil
}

// Invalidate drops the cached profile, typically when the driver's ingress
// connection closes, so reconnects never see a stale vehicle assignment.
func (c *Cache) Invalidate(id domain.DriverID) {
	c.mu.Lock()
	delete(c.profiles, id)
	c.mu.Unlock()
}

// Len reports the number of cached profiles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
