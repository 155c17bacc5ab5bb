package locate

import (
	"strings"
	"sync"

	"github.com/kwehner/mzusi/internal/usi"
)

// Cache memoizes successful run locations across resolution calls.
//
// Keys cover the full prefix snapshot plus collection and run, so a caller
// that changes the prefix order gets a fresh probe. Lookups are concurrent;
// first population is serialized per key, so under load at most one
// directory probe is in flight for any given run. Failed probes are not
// cached: environment-level faults are expected to be retried after
// operator intervention.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu   sync.Mutex
	done bool
	lf   LocatedFile
}

// NewCache creates an empty located-file cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Resolve returns the located run, probing the file system only on the
// first call for a given (prefixes, collection, run) key.
func (c *Cache) Resolve(ident usi.USI, prefixes []string) (LocatedFile, error) {
	key := cacheKey(ident, prefixes)

	c.mu.RLock()
	e := c.entries[key]
	c.mu.RUnlock()

	if e == nil {
		c.mu.Lock()
		if e = c.entries[key]; e == nil {
			e = &cacheEntry{}
			c.entries[key] = e
		}
		c.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.lf, nil
	}

	lf, err := Resolve(ident, prefixes)
	if err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return LocatedFile{}, err
	}
	e.lf = lf
	e.done = true
	return lf, nil
}

// Invalidate drops every cached location. Intended for operator use after
// files move on disk.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

func cacheKey(ident usi.USI, prefixes []string) string {
	parts := make([]string, 0, len(prefixes)+2)
	parts = append(parts, prefixes...)
	parts = append(parts, ident.Collection, ident.Run)
	return strings.Join(parts, "\x00")
}
