package render

import (
	"sync"

	"github.com/kungfusheep/dualview/bounds"
	"github.com/kungfusheep/dualview/view"
)

type cacheEntry struct {
	parent  bounds.Context
	prev    bounds.Rect
	hasPrev bool
	batch   *Batch
	kids    []view.Node
	gen     uint64
}

func (e *cacheEntry) matches(parent bounds.Context, prev *bounds.Rect) bool {
	if (prev != nil) != e.hasPrev {
		return false
	}
	if prev != nil && *prev != e.prev {
		return false
	}
	return e.parent.Equal(parent)
}

// Cache memoizes batches per node, keyed on the node's identity and valid
// only for the exact parent context and previous-sibling rectangle that
// produced them. It also remembers each node's parent so an invalidation can
// evict the whole ancestor chain.
type Cache struct {
	mu      sync.Mutex
	entries map[view.Node]*cacheEntry
	owners  map[view.Node]view.Node
	gen     uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[view.Node]*cacheEntry),
		owners:  make(map[view.Node]view.Node),
	}
}

// Has reports whether n has a cached batch.
func (c *Cache) Has(n view.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[n]
	return ok
}

// Len returns the number of cached batches.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate evicts n and every ancestor it was last rendered under.
func (c *Cache) Invalidate(n view.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for seen := 0; n != nil && seen <= len(c.owners); seen++ {
		delete(c.entries, n)
		n = c.owners[n]
	}
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	clear(c.owners)
}

func (c *Cache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// lookup returns the cached batch for n if its inputs are unchanged. A stale
// entry is evicted. A hit marks n's cached subtree as live.
func (c *Cache) lookup(n view.Node, parent bounds.Context, prev *bounds.Rect, owner view.Node) (*Batch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[n]
	if !ok {
		return nil, false
	}
	if !e.matches(parent, prev) {
		delete(c.entries, n)
		return nil, false
	}
	c.owners[n] = owner
	c.touch(n, e)
	return e.batch, true
}

func (c *Cache) touch(n view.Node, e *cacheEntry) {
	e.gen = c.gen
	for _, k := range e.kids {
		if ke, ok := c.entries[k]; ok && ke.gen != c.gen {
			c.touch(k, ke)
		}
	}
}

func (c *Cache) store(n view.Node, parent bounds.Context, prev *bounds.Rect, owner view.Node, b *Batch, kids []view.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &cacheEntry{parent: parent, batch: b, kids: kids, gen: c.gen}
	if prev != nil {
		e.prev, e.hasPrev = *prev, true
	}
	c.entries[n] = e
	c.owners[n] = owner
}

// sweep drops entries for nodes that were not part of the frame gen.
func (c *Cache) sweep(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, e := range c.entries {
		if e.gen != gen {
			delete(c.entries, n)
		}
	}
	for n := range c.owners {
		if _, ok := c.entries[n]; !ok {
			delete(c.owners, n)
		}
	}
}
