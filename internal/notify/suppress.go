// ABOUTME: TTL cache suppressing duplicate notification deliveries
// ABOUTME: Keyed by recipient and message so a retried fan-out notifies once

package notify

import (
	"sync"
	"time"
)

const suppressMaxEntries = 4096

// seenCache tracks recently dispatched (recipient, message) pairs. Entries
// expire after the TTL; stale entries are pruned inline when the cache grows,
// so no background goroutine is needed.
type seenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

func newSeenCache(ttl time.Duration) *seenCache {
	return &seenCache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// checkAndMark reports whether the key was already seen within the TTL and
// marks it seen either way. The check and mark are atomic.
func (c *seenCache) checkAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if at, ok := c.entries[key]; ok && now.Sub(at) < c.ttl {
		return true
	}

	if len(c.entries) >= suppressMaxEntries {
		c.prune(now)
	}
	c.entries[key] = now
	return false
}

// prune drops expired entries. Must be called with mu held. If everything is
// still fresh the map is cleared outright to bound memory.
func (c *seenCache) prune(now time.Time) {
	for key, at := range c.entries {
		if now.Sub(at) >= c.ttl {
			delete(c.entries, key)
		}
	}
	if len(c.entries) >= suppressMaxEntries {
		c.entries = make(map[string]time.Time)
	}
}
