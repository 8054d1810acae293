package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pulsecrm/apiserver/types"
)

const (
	// DefaultCacheTTL bounds how long a user snapshot may be served
	// without a fresh store read.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultCacheCapacity bounds the number of cached users; the
	// least recently accessed entry is evicted beyond it.
	DefaultCacheCapacity = 1000
)

// cacheEntry is mutable for timestamps; it is only touched under the
// cache mutex.
type cacheEntry struct {
	user           types.User
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// UserCache is a TTL- and size-bounded snapshot cache mapping user id
// to user record. It is constructor-injected (one instance per
// process) so tests can run isolated instances and a shared external
// store could be swapped in behind the same shape later.
//
// Coherence contract: any flow that mutates a user record must call
// Invalidate for that id. The cache itself only guarantees staleness
// bounded by the TTL.
type UserCache struct {
	mu       sync.Mutex
	entries  map[int]*cacheEntry
	ttl      time.Duration
	capacity int

	// now is swapped in tests to exercise TTL boundaries.
	now func() time.Time
}

func NewUserCache(ttl time.Duration, capacity int) *UserCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &UserCache{
		entries:  make(map[int]*cacheEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the cached user and records a touch. Expired entries are
// removed on the spot and reported as a miss.
func (c *UserCache) Get(id int) (types.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return types.User{}, false
	}

	now := c.now()
	if c.isExpired(entry, now) {
		delete(c.entries, id)
		return types.User{}, false
	}

	entry.lastAccessedAt = now
	entry.accessCount++
	return entry.user, true
}

// Put inserts or overwrites the snapshot for an active user. Inactive
// users are never cached; a stale active snapshot would mask a later
// deactivation for up to a full TTL. At capacity the least recently
// accessed entry is evicted first.
func (c *UserCache) Put(id int, user types.User) {
	if !user.Active {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.capacity {
		c.evictLRU()
	}
	c.entries[id] = &cacheEntry{
		user:           user,
		createdAt:      now,
		lastAccessedAt: now,
		accessCount:    0,
	}
}

// Invalidate removes the entry unconditionally.
func (c *UserCache) Invalidate(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Sweep removes every expired entry. It shares isExpired with the read
// path so lazy and periodic expiry cannot diverge.
func (c *UserCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.entries {
		if c.isExpired(entry, now) {
			delete(c.entries, id)
		}
	}
}

// Len reports the number of entries, expired or not.
func (c *UserCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper runs Sweep on the given interval until ctx is done.
func (c *UserCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// AccessCount reports how many hits an entry has served. Zero for
// missing entries; used by tests and diagnostics.
func (c *UserCache) AccessCount(id int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[id]; ok {
		return entry.accessCount
	}
	return 0
}

func (c *UserCache) isExpired(entry *cacheEntry, now time.Time) bool {
	return now.Sub(entry.createdAt) > c.ttl
}

func (c *UserCache) evictLRU() {
	var oldestID int
	var oldest time.Time
	first := true
	for id, entry := range c.entries {
		if first || entry.lastAccessedAt.Before(oldest) {
			oldestID = id
			oldest = entry.lastAccessedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestID)
	}
}
