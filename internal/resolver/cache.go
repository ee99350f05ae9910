package resolver

import (
	"container/list"
	"sync"
	"time"

	"bankimport/internal/models"
)

// AliasCache keeps recently loaded alias tables per organization. It holds at
// most capacity organizations, evicting the least recently used, and entries
// expire after ttl. A zero ttl disables expiry.
//
// The cache is owned by whoever creates it; nothing in this package keeps a
// shared instance.
type AliasCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List
	entries  map[int64]*list.Element
}

type cacheEntry struct {
	orgID   int64
	aliases []models.CounterpartyAlias
	expires time.Time
}

func NewAliasCache(capacity int, ttl time.Duration) *AliasCache {
	if capacity < 1 {
		capacity = 1
	}
	return &AliasCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		entries:  make(map[int64]*list.Element),
	}
}

// Get returns a copy of the cached aliases of an organization.
func (c *AliasCache) Get(orgID int64) ([]models.CounterpartyAlias, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[orgID]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return cloneAliases(e.aliases), true
}

// Put stores a copy of aliases for an organization.
func (c *AliasCache) Put(orgID int64, aliases []models.CounterpartyAlias) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[orgID]; ok {
		e := el.Value.(*cacheEntry)
		e.aliases = cloneAliases(aliases)
		e.expires = expires
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{orgID: orgID, aliases: cloneAliases(aliases), expires: expires})
	c.entries[orgID] = el
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
}

// Invalidate drops the entry of an organization.
func (c *AliasCache) Invalidate(orgID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[orgID]; ok {
		c.removeElement(el)
	}
}

// Len is the number of cached organizations, expired ones included.
func (c *AliasCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *AliasCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).orgID)
}

func cloneAliases(aliases []models.CounterpartyAlias) []models.CounterpartyAlias {
	out := make([]models.CounterpartyAlias, len(aliases))
	copy(out, aliases)
	return out
}
