package kiln

// WarningKind classifies a non-fatal diagnostic.
type WarningKind string

const (
	// WarnScopeMismatch is recorded when a cached singleton captured a
	// transient dependency: the singleton will hold that one instance
	// forever, defeating the transient scope.
	WarnScopeMismatch WarningKind = "scope_mismatch"

	// WarnAsyncInit is recorded when an initialization hook fired on the
	// ordinary resolve path fails. The caller already holds the instance,
	// so the failure cannot be thrown.
	WarnAsyncInit WarningKind = "async_init_error"
)

// Warning is a diagnostic record surfaced through Container.Warnings.
type Warning struct {
	Kind WarningKind

	// Key is the resolved key the warning is about.
	Key string

	// Dependency is set for scope-mismatch warnings: the transient key the
	// singleton captured.
	Dependency string

	// Err is set for async-init warnings.
	Err error
}

// references reports whether the warning mentions any of the given keys,
// either as its subject or as the offending dependency.
func (w Warning) references(keys map[string]bool) bool {
	return keys[w.Key] || (w.Dependency != "" && keys[w.Dependency])
}
