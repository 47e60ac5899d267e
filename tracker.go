package kiln

// depTracker persists the observed dependency graph: for each key, the list
// of keys its factory read during its most recent successful resolution.
// Entries are overwritten wholesale on every resolution, so conditional
// reads yield a changing edge set rather than a union of history.
//
// Like orderedCache, the tracker is guarded by the owning container's
// mutex.
type depTracker struct {
	graph map[string][]string
}

func newDepTracker() *depTracker {
	return &depTracker{graph: make(map[string][]string)}
}

// record replaces the dependency list for key.
func (t *depTracker) record(key string, deps []string) {
	stored := make([]string, len(deps))
	copy(stored, deps)
	t.graph[key] = stored
}

// snapshot returns a deep copy of the graph.
func (t *depTracker) snapshot() map[string][]string {
	out := make(map[string][]string, len(t.graph))
	for k, deps := range t.graph {
		cp := make([]string, len(deps))
		copy(cp, deps)
		out[k] = cp
	}
	return out
}

func (t *depTracker) clear(keys ...string) {
	for _, k := range keys {
		delete(t.graph, k)
	}
}

func (t *depTracker) clearAll() {
	t.graph = make(map[string][]string)
}

// trackingAccessor is the Accessor handed to a factory for one resolution
// call. It captures every key the factory reads, in read order, and
// forwards into the resolver so nested keys resolve recursively while the
// graph is being discovered.
type trackingAccessor struct {
	chain   []string
	reads   []string
	resolve func(key string, chain []string) (any, error)
}

func (a *trackingAccessor) Get(key string) (any, error) {
	a.reads = appendUnique(a.reads, key)
	return a.resolve(key, a.chain)
}

func appendUnique(slice []string, item string) []string {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
