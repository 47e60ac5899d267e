package kiln

// orderedCache maps keys to resolved instances while remembering insertion
// order. Dispose walks the order backwards, so order is part of the cache
// contract, not a convenience. The cache carries no lock of its own: all
// access goes through the owning container's mutex.
type orderedCache struct {
	order  []string
	values map[string]any
}

func newOrderedCache() *orderedCache {
	return &orderedCache{values: make(map[string]any)}
}

func (c *orderedCache) Load(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Store inserts or overwrites. Overwriting keeps the key's original
// position in the order.
func (c *orderedCache) Store(key string, value any) {
	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
	}
	c.values[key] = value
}

func (c *orderedCache) Delete(key string) {
	if _, ok := c.values[key]; !ok {
		return
	}
	delete(c.values, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *orderedCache) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Keys returns the cached keys in insertion order.
func (c *orderedCache) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *orderedCache) Len() int {
	return len(c.order)
}

// Snapshot returns a copy of the key/value mapping.
func (c *orderedCache) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

func (c *orderedCache) Clear() {
	c.order = nil
	c.values = make(map[string]any)
}
