package resolver

import (
	"testing"
	"time"

	"bankimport/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(capacity int, ttl time.Duration) (*AliasCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewAliasCache(capacity, ttl)
	c.now = clock.now
	return c, clock
}

func TestAliasCacheExpiry(t *testing.T) {
	c, clock := newTestCache(4, time.Minute)
	c.Put(1, []models.CounterpartyAlias{{ID: 1, ClientID: 7}})

	clock.t = clock.t.Add(59 * time.Second)
	if got, ok := c.Get(1); !ok || len(got) != 1 {
		t.Fatalf("Get before expiry = %v, %v", got, ok)
	}

	clock.t = clock.t.Add(time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("Get after ttl returned an entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want expired entry removed", c.Len())
	}
}

func TestAliasCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, 0)
	c.Put(1, nil)
	c.Put(2, nil)
	c.Get(1)
	c.Put(3, nil)

	if _, ok := c.Get(2); ok {
		t.Error("org 2 should have been evicted")
	}
	for _, org := range []int64{1, 3} {
		if _, ok := c.Get(org); !ok {
			t.Errorf("org %d missing", org)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestAliasCacheCopies(t *testing.T) {
	c, _ := newTestCache(2, 0)
	aliases := []models.CounterpartyAlias{{ID: 1, ClientID: 7}}
	c.Put(1, aliases)
	aliases[0].ClientID = 8

	got, _ := c.Get(1)
	if got[0].ClientID != 7 {
		t.Errorf("cache shares the caller's slice: ClientID = %d", got[0].ClientID)
	}
	got[0].ClientID = 9
	again, _ := c.Get(1)
	if again[0].ClientID != 7 {
		t.Errorf("cache shares the returned slice: ClientID = %d", again[0].ClientID)
	}
}

func TestAliasCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Put(1, []models.CounterpartyAlias{{ID: 1}})
	c.Put(2, []models.CounterpartyAlias{{ID: 2}})
	c.Invalidate(1)
	c.Invalidate(42)

	if _, ok := c.Get(1); ok {
		t.Error("invalidated org still cached")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("other org was dropped")
	}
}

func TestAliasCachesAreIndependent(t *testing.T) {
	a := NewAliasCache(2, time.Hour)
	b := NewAliasCache(2, time.Hour)
	a.Put(1, []models.CounterpartyAlias{{ID: 1}})
	if _, ok := b.Get(1); ok {
		t.Error("caches share state")
	}
}
