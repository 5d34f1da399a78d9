// Package cache implements the pager's fixed-capacity LRU page cache on
// top of github.com/elastic/go-freelru. It knows nothing about files or
// dirtiness; eviction notifications are handed to the caller so the
// pager can decide whether a page needs to be written back.
package cache

import (
	"github.com/elastic/go-freelru"

	"kvtree/internal/page"
)

// MinCapacity is the smallest cache capacity the pager will accept.
// Borrow/merge pathways pin up to four pages at once (self, sibling,
// parent, grandparent re-walk) so the cache must be able to hold at
// least that many resident pages.
const MinCapacity = 4

// Cache is a fixed-capacity, in-memory LRU cache of *page.Page, keyed by
// page number.
type Cache struct {
	lru      *freelru.LRU[page.Num, *page.Page]
	removing bool // set while Remove runs, so onEvict is not called
}

// New creates a Cache with the given capacity (clamped to MinCapacity).
// onEvict is invoked synchronously, from within Put, whenever the LRU
// evicts an entry to make room -- the pager uses it to flush dirty pages
// before their buffer is dropped.
func New(capacity int, onEvict func(page.Num, *page.Page)) *Cache {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}

	lru, err := freelru.New[page.Num, *page.Page](uint32(capacity), hashPageNum)
	if err != nil {
		// Only returns an error for a zero hash function or a capacity
		// that overflows uint32, neither of which can happen here.
		panic(err)
	}
	c := &Cache{lru: lru}
	if onEvict != nil {
		lru.SetOnEvict(func(pn page.Num, p *page.Page) {
			if !c.removing {
				onEvict(pn, p)
			}
		})
	}

	return c
}

// Get returns the cached page for pn and promotes it to most-recently-used.
func (c *Cache) Get(pn page.Num) (*page.Page, bool) {
	return c.lru.Get(pn)
}

// Put inserts or replaces the cached page for pn as the most-recently-used
// entry, evicting the least-recently-used entry first if the cache is at
// capacity.
func (c *Cache) Put(pn page.Num, p *page.Page) {
	c.lru.Add(pn, p)
}

// Remove drops pn from the cache without invoking the eviction callback,
// so its cached content is not written back.
func (c *Cache) Remove(pn page.Num) {
	c.removing = true
	c.lru.Remove(pn)
	c.removing = false
}

// Len returns the number of pages currently resident in the cache.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge evicts every entry, running the eviction callback for each --
// used by Pager.Close to drop every buffer, flushing any page still dirty.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// hashPageNum mixes a page number into a 32-bit hash. Page numbers are
// dense and sequential, so a cheap avalanche mix keeps nearby pages out
// of the same bucket.
func hashPageNum(n page.Num) uint32 {
	x := uint32(n)
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}
