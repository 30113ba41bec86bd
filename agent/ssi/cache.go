package ssi

import "sync"

// Cache keeps our DIDs in memory because every signature needs the current
// verkey and reading it from an encrypted wallet is slow. The wallet stays
// the source of truth: all writes go through it first.
type Cache struct {
	cache map[string]DID
	sync.RWMutex
}

// Add stores a copy of the DID.
func (c *Cache) Add(d *DID) {
	c.Lock()
	defer c.Unlock()

	if c.cache == nil {
		c.cache = make(map[string]DID)
	}
	c.cache[d.DID] = *d
}

// Get returns a copy of the cached DID.
func (c *Cache) Get(did string) (*DID, bool) {
	c.RLock()
	defer c.RUnlock()

	d, ok := c.cache[did]
	if !ok {
		return nil, false
	}
	return &d, true
}

// Remove drops the DID, e.g. when the wallet write failed.
func (c *Cache) Remove(did string) {
	c.Lock()
	defer c.Unlock()
	delete(c.cache, did)
}

func (c *Cache) Len() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.cache)
}
