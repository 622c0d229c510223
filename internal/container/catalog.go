package container

import "sync"

// catalog is an insertion-ordered token → wrapper map. Re-setting an
// existing token replaces the wrapper in place.
type catalog struct {
	mu    sync.RWMutex
	keys  []any
	items map[any]*InstanceWrapper
}

func newCatalog() *catalog {
	return &catalog{items: make(map[any]*InstanceWrapper)}
}

func (c *catalog) set(token any, w *InstanceWrapper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[token]; !ok {
		c.keys = append(c.keys, token)
	}
	c.items[token] = w
}

func (c *catalog) get(token any) (*InstanceWrapper, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.items[token]
	return w, ok
}

func (c *catalog) has(token any) bool {
	_, ok := c.get(token)
	return ok
}

func (c *catalog) values() []*InstanceWrapper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*InstanceWrapper, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.items[k])
	}
	return out
}

func (c *catalog) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
