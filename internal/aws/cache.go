package aws

import (
	"sync"
	"time"

	"github.com/eleven-am/perimeter/internal/domain"
)

// groupCache memoizes security-group resolution. Many hosts share a
// handful of groups, so one derivation run would otherwise re-fetch the
// same group per host.
type groupEntry struct {
	group   *domain.SecurityGroupData
	expires time.Time
}

type groupCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[domain.SecurityGroupID]groupEntry
}

func newGroupCache(ttl time.Duration) *groupCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &groupCache{
		ttl:     ttl,
		entries: make(map[domain.SecurityGroupID]groupEntry),
	}
}

func (c *groupCache) get(id domain.SecurityGroupID) (*domain.SecurityGroupData, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil, false
	}
	return entry.group, true
}

func (c *groupCache) set(id domain.SecurityGroupID, group *domain.SecurityGroupData) {
	c.mu.Lock()
	c.entries[id] = groupEntry{group: group, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
