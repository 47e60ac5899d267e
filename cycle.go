package kiln

// cycleDetector tracks which keys are mid-resolution on the current call
// stack. It only mutates state; the resolver decides what re-entrancy
// means. Callers must pair every enter with a leave on all exit paths.
type cycleDetector struct {
	active map[string]bool
}

func newCycleDetector() *cycleDetector {
	return &cycleDetector{active: make(map[string]bool)}
}

func (d *cycleDetector) enter(key string) {
	d.active[key] = true
}

func (d *cycleDetector) leave(key string) {
	delete(d.active, key)
}

func (d *cycleDetector) isResolving(key string) bool {
	return d.active[key]
}
