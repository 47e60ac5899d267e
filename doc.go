// Package kiln provides a string-keyed, lazily resolving dependency
// container for Go, with observed dependency graphs and ordered batch
// lifecycle operations.
//
// # Overview
//
// Kiln organizes code around three core concepts:
//
//  1. Factories: functions (or eager values) registered under string keys
//  2. Containers: resolve keys lazily, cache singletons, and discover the
//     dependency graph by watching which keys each factory reads
//  3. Lifecycle batches: Preload initializes in dependency order, Dispose
//     tears down in reverse resolution order
//
// # Basic Usage
//
// Register factories and resolve through a container:
//
//	c, err := kiln.New(kiln.Factories{
//	    "config": &Config{Port: 8080},
//	    "server": func(acc kiln.Accessor) (any, error) {
//	        cfg, err := kiln.Get[*Config](acc, "config")
//	        if err != nil {
//	            return nil, err
//	        }
//	        return NewServer(cfg.Port), nil
//	    },
//	})
//
//	srv, err := kiln.Resolve[*Server](c, "server")
//
// The dependency graph is not declared anywhere: because the server
// factory read "config" through its accessor, the container records the
// edge server -> config. Conditional reads produce a dynamic edge set that
// always reflects the latest resolution.
//
// # Scopes
//
// By default a factory is a singleton: resolved once, cached, and the same
// instance returned afterwards. Transient factories produce a fresh
// instance on every resolution and never enter the cache:
//
//	c, _ := kiln.New(kiln.Factories{
//	    "request-id": kiln.Provide(newRequestID, kiln.AsTransient()),
//	})
//
// A singleton that captures a transient dependency holds that one instance
// forever; the container records a scope_mismatch warning when it sees
// this happen.
//
// # Parent Containers
//
// A container may chain to a parent. Keys not registered locally resolve
// through the parent; a locally registered key shadows the parent's even
// before it is resolved. The child has its own cache and never mutates the
// parent's state:
//
//	child, _ := kiln.New(kiln.Factories{"handler": newHandler},
//	    kiln.WithParent(root),
//	)
//
// # Lifecycle
//
// A resolved value may expose initialization and teardown capabilities:
//
//	type Database struct{ ... }
//
//	func (d *Database) Init(ctx context.Context) error    { return d.connect(ctx) }
//	func (d *Database) Dispose(ctx context.Context) error { return d.conn.Close() }
//
// On the ordinary resolve path the Init hook fires at most once per key,
// asynchronously; a failure is recorded as an async_init_error warning
// because the caller already holds the instance.
//
// Preload makes initialization deterministic: it resolves a batch of keys
// with hooks deferred, then fires Init over the transitive dependency
// closure in topological levels, dependencies strictly before dependents,
// siblings concurrently:
//
//	if err := c.Preload(ctx); err != nil { ... }
//
// Dispose walks the cache in reverse resolution order, invokes every
// Dispose hook, and clears all container state even when hooks fail:
//
//	if err := c.Dispose(ctx); err != nil { ... }
//
// Both batch operations return a single failure directly and wrap multiple
// failures in an AggregateError.
//
// # Handles
//
// Handles give a typed view over one key:
//
//	db := kiln.Lookup[*Database](c, "db")
//	v, err := db.Get()
//	v, ok := db.Peek()
//	db.Reset()
//
// # Errors and Warnings
//
// Resolution failures are typed: NotFoundError (with a fuzzy suggestion
// and the full registered key set), CycleError (with the exact chain),
// NilResultError, FactoryError (wrapping unexpected factory errors and
// panics). Match them with errors.As. Non-fatal diagnostics are exposed
// through Warnings().
//
// # Extensions
//
// Extensions hook cross-cutting concerns into resolve, init and dispose:
//
//	type TimingExtension struct {
//	    kiln.BaseExtension
//	}
//
//	func (e *TimingExtension) Wrap(ctx context.Context, next func() (any, error), op *kiln.Operation) (any, error) {
//	    start := time.Now()
//	    result, err := next()
//	    log.Printf("%s %s took %v", op.Kind, op.Key, time.Since(start))
//	    return result, err
//	}
//
//	c, _ := kiln.New(factories, kiln.WithExtension(&TimingExtension{
//	    BaseExtension: kiln.NewBaseExtension("timing"),
//	}))
//
// The extensions subpackage ships logging (slog), metrics (prometheus) and
// graph-debug (treedrawer) extensions.
//
// # Thread Safety
//
// A container may be used from multiple goroutines: resolution runs under
// the container's lock and is fully synchronous, so no other resolve can
// interleave mid-factory. Initialization hooks and extension OnError and
// OnWarning callbacks run outside the lock, so they may call back into
// the container.
package kiln
