package kiln

// Handle is a typed view over one key of a container.
type Handle[T any] struct {
	container *Container
	key       string
}

// Lookup creates a handle for a key.
func Lookup[T any](c *Container, key string) Handle[T] {
	return Handle[T]{container: c, key: key}
}

// Key returns the key the handle points at.
func (h Handle[T]) Key() string {
	return h.key
}

// Get resolves the key (constructing the value if needed).
func (h Handle[T]) Get() (T, error) {
	return Resolve[T](h.container, h.key)
}

// Peek returns the cached value without resolving.
func (h Handle[T]) Peek() (T, bool) {
	h.container.mu.Lock()
	v, ok := h.container.cache.Load(h.key)
	h.container.mu.Unlock()

	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// IsCached checks whether the key currently has a cached instance.
func (h Handle[T]) IsCached() bool {
	return h.container.IsResolved(h.key)
}

// Reset drops the cached instance and its init flag, so the next Get
// re-runs the factory and re-fires initialization.
func (h Handle[T]) Reset() {
	h.container.Reset(h.key)
}

// Reload resets and immediately re-resolves.
func (h Handle[T]) Reload() (T, error) {
	h.Reset()
	return h.Get()
}
