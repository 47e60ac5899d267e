package kiln

import (
	"context"
	"sync"
)

// Preload eagerly resolves the given keys (all locally registered keys when
// none are given) and then fires their initialization hooks in dependency
// order.
//
// Resolution happens first with initialization deferred. If any resolution
// fails, every cache entry added by this call is rolled back and the error
// is returned; nothing is left half-resolved.
//
// Initialization then runs over the transitive dependency closure of the
// requested keys, partitioned into topological levels: a key initializes
// strictly after everything it depends on. Keys within one level
// initialize concurrently, and one member's failure never prevents its
// siblings from completing. A single failure is returned as-is; several
// are wrapped in an AggregateError. Keys that cannot be ordered (a cycle
// spanning separate resolve calls) surface as a StuckKeysError.
func (c *Container) Preload(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = c.LocalKeys()
	}

	c.mu.Lock()
	preexisting := make(map[string]bool, c.cache.Len())
	for _, k := range c.cache.Keys() {
		preexisting[k] = true
	}
	c.mu.Unlock()

	c.initMu.Lock()
	prevDefer := c.deferInit
	c.deferInit = true
	c.initMu.Unlock()
	defer func() {
		c.initMu.Lock()
		c.deferInit = prevDefer
		c.initMu.Unlock()
	}()

	for _, key := range keys {
		if _, err := c.Resolve(key); err != nil {
			c.rollbackCache(preexisting)
			return err
		}
	}

	c.mu.Lock()
	graph := c.tracker.snapshot()
	c.mu.Unlock()

	closure := dependencyClosure(keys, graph)
	levels, stuck := topoLevels(closure, graph)

	var (
		failMu   sync.Mutex
		failures []error
	)
	for _, level := range levels {
		var wg sync.WaitGroup
		for _, key := range level {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				if err := c.CallOnInit(ctx, key); err != nil {
					failMu.Lock()
					failures = append(failures, err)
					failMu.Unlock()
				}
			}(key)
		}
		wg.Wait()
	}

	if err := batchError("preload", failures); err != nil {
		return err
	}
	if len(stuck) > 0 {
		return &StuckKeysError{Keys: stuck}
	}
	return nil
}

// rollbackCache drops every cache entry that was not present before the
// preload began.
func (c *Container) rollbackCache(preexisting map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.cache.Keys() {
		if !preexisting[k] {
			c.cache.Delete(k)
		}
	}
}

// dependencyClosure walks recorded edges depth-first from the roots,
// visiting each key once, and returns the visited set in discovery order.
func dependencyClosure(roots []string, graph map[string][]string) []string {
	visited := make(map[string]bool)
	var closure []string

	stack := make([]string, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true
		closure = append(closure, current)

		deps := graph[current]
		for i := len(deps) - 1; i >= 0; i-- {
			if !visited[deps[i]] {
				stack = append(stack, deps[i])
			}
		}
	}

	return closure
}

// topoLevels partitions the closure into initialization levels: level 0
// holds keys with no in-closure dependencies, and every other key sits one
// past the highest level among its dependencies. Keys that never become
// placeable are returned separately as stuck.
func topoLevels(closure []string, graph map[string][]string) ([][]string, []string) {
	inClosure := make(map[string]bool, len(closure))
	for _, k := range closure {
		inClosure[k] = true
	}

	placed := make(map[string]bool, len(closure))
	var levels [][]string

	for len(placed) < len(closure) {
		var level []string
		for _, key := range closure {
			if placed[key] {
				continue
			}
			ready := true
			for _, dep := range graph[key] {
				if inClosure[dep] && !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, key)
			}
		}

		if len(level) == 0 {
			break
		}
		for _, key := range level {
			placed[key] = true
		}
		levels = append(levels, level)
	}

	var stuck []string
	for _, key := range closure {
		if !placed[key] {
			stuck = append(stuck, key)
		}
	}
	return levels, stuck
}
