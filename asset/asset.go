// Package asset is a keyed, memoizing cache for values that are expensive to
// load, such as decoded images.
//
// Each key is loaded at most once at a time. While a load is in flight the
// entry holds no value, and further lookups of the same key wait for it
// (Get) or register for its completion (GetAsync) instead of starting a
// second load. Failures are memoized too, so a broken asset is not retried
// until its key changes or it is forgotten.
package asset

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Loader produces the value for a key.
type Loader func() (any, error)

type entry struct {
	done    chan struct{}
	value   any
	err     error
	waiters []func(any, error)
	owners  map[any]bool
}

func (e *entry) resolved() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	log     *log.Logger
}

// New returns an empty cache. A nil logger discards.
func New(logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Cache{entries: make(map[string]*entry), log: logger}
}

// Get returns the value for key, loading it synchronously on first use.
func (c *Cache) Get(key string, load Loader) (any, error) {
	e, start := c.lookup(key)
	if start {
		c.run(key, e, load)
	}
	<-e.done
	return e.value, e.err
}

// GetAsync returns the value for key if it has loaded successfully, or nil
// otherwise, starting a background load on first use. The returned function
// registers a callback that runs once the key resolves, immediately if it
// already has. Callbacks run on the loading goroutine.
func (c *Cache) GetAsync(key string, load Loader) (any, func(func(any, error))) {
	e, start := c.lookup(key)
	if start {
		go c.run(key, e, load)
	}
	register := func(fn func(any, error)) { c.onReady(e, fn) }
	if !e.resolved() || e.err != nil {
		return nil, register
	}
	return e.value, register
}

// OnReady registers fn for key's resolution. It is a no-op for unknown keys.
func (c *Cache) OnReady(key string, fn func(any, error)) {
	c.mu.Lock()
	e := c.entries[key]
	c.mu.Unlock()
	if e != nil {
		c.onReady(e, fn)
	}
}

// OnReadyFor is OnReady keyed by owner: while key is in flight, only the
// first fn registered for an owner is kept. Renderers call it on every frame
// that draws a pending asset.
func (c *Cache) OnReadyFor(key string, owner any, fn func(any, error)) {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil {
		c.mu.Unlock()
		return
	}
	if !e.resolved() {
		if !e.owners[owner] {
			if e.owners == nil {
				e.owners = make(map[any]bool)
			}
			e.owners[owner] = true
			e.waiters = append(e.waiters, fn)
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(e.value, e.err)
}

// Err returns the memoized failure for key, if it resolved with one.
func (c *Cache) Err(key string) error {
	c.mu.Lock()
	e := c.entries[key]
	c.mu.Unlock()
	if e == nil || !e.resolved() {
		return nil
	}
	return e.err
}

// Forget drops key so that the next lookup loads it again. An in-flight load
// still completes for the callers already waiting on it.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of keys held, loaded or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (e *entry, start bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, false
	}
	e = &entry{done: make(chan struct{})}
	c.entries[key] = e
	return e, true
}

func (c *Cache) run(key string, e *entry, load Loader) {
	v, err := load()
	if err != nil {
		c.log.Warn("asset load failed", "key", key, "err", err)
	}

	c.mu.Lock()
	e.value, e.err = v, err
	waiters := e.waiters
	e.waiters, e.owners = nil, nil
	close(e.done)
	c.mu.Unlock()

	for _, fn := range waiters {
		fn(v, err)
	}
}

func (c *Cache) onReady(e *entry, fn func(any, error)) {
	c.mu.Lock()
	if !e.resolved() {
		e.waiters = append(e.waiters, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn(e.value, e.err)
}

// Load is Get with a typed loader.
func Load[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	v, err := c.Get(key, func() (any, error) { return load() })
	t, _ := v.(T)
	return t, err
}

// LoadAsync is GetAsync with a typed loader. ok is false while the load is in
// flight; err is the memoized failure once it has resolved.
func LoadAsync[T any](c *Cache, key string, load func() (T, error)) (v T, ok bool, err error) {
	val, _ := c.GetAsync(key, func() (any, error) { return load() })
	if t, ok := val.(T); ok {
		return t, true, nil
	}
	return v, false, c.Err(key)
}
