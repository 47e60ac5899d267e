package kiln

import "context"

// Dispose tears the container down: every cached instance exposing the
// Disposer capability has its hook invoked in exact reverse resolution
// order (last resolved, first destroyed). A failing hook is collected and
// iteration continues; after the full pass the cache, init state,
// dependency graph and warnings are cleared unconditionally. A single
// failure is returned directly, several as an AggregateError.
func (c *Container) Dispose(ctx context.Context) error {
	c.mu.Lock()
	keys := c.cache.Keys()
	values := c.cache.Snapshot()
	c.mu.Unlock()

	var failures []error
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		d, ok := values[key].(Disposer)
		if !ok {
			continue
		}

		op := &Operation{Kind: OpDispose, Key: key, Container: c}
		_, err := c.applyExtensions(ctx, op, func() (any, error) {
			return nil, d.Dispose(ctx)
		})
		if err != nil {
			c.logger.Error("dispose failed", "container", c.id, "key", key, "error", err)
			c.notifyError(err, op)
			failures = append(failures, err)
		}
	}

	// Terminal cleanup happens regardless of hook failures.
	c.mu.Lock()
	c.cache.Clear()
	c.tracker.clearAll()
	c.mu.Unlock()
	c.ClearAllInitState()
	c.ClearWarnings()

	for _, ext := range c.snapshotExtensions() {
		if err := ext.Dispose(c); err != nil {
			failures = append(failures, err)
		}
	}

	return batchError("dispose", failures)
}
