package kiln

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Container resolves keys to values through registered factories. Values
// are constructed lazily, singletons are cached in resolution order, and
// the dependency graph is discovered by observing which keys each factory
// actually reads through its Accessor.
//
// The registry is immutable after New. Lookups for locally unregistered
// keys fall through to the parent container, if any; a child never mutates
// parent state.
type Container struct {
	id        string
	factories map[string]Factory
	parent    *Container
	logger    *slog.Logger

	// mu guards cache, cycle and tracker. It is held for the whole of a
	// resolve call; recursion re-enters through internal lock-held paths.
	mu      sync.Mutex
	cache   *orderedCache
	cycle   *cycleDetector
	tracker *depTracker

	extMu      sync.Mutex
	extensions []Extension

	initMu      sync.Mutex
	initialized map[string]bool
	deferInit   bool

	warnMu   sync.Mutex
	warnings []Warning

	noticeMu sync.Mutex
	notices  []notice
}

// notice is an extension notification produced while c.mu is held. It is
// queued and delivered after the lock is released, so callbacks are free
// to use the container's public API (DepGraph, Warnings, ...) without
// deadlocking.
type notice struct {
	err  error
	op   *Operation
	warn *Warning
}

// Option is a modifier for containers.
type Option func(*Container)

// WithParent chains the container to a parent. Keys not registered locally
// resolve through the parent's registry and cache.
func WithParent(parent *Container) Option {
	return func(c *Container) {
		c.parent = parent
	}
}

// WithExtension registers an extension on the container.
func WithExtension(ext Extension) Option {
	return func(c *Container) {
		c.extensions = append(c.extensions, ext)
	}
}

// WithLogger sets the logger used for lifecycle diagnostics. The default
// logger discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// New creates a container over the given factories. Registration values
// may be Factory values, factory functions, or eager plain values; see
// Factories. Invalid registrations (empty or reserved keys, nil factory
// functions) are rejected here, before any resolution can happen.
func New(factories Factories, opts ...Option) (*Container, error) {
	registry, err := buildRegistry(factories)
	if err != nil {
		return nil, err
	}

	c := &Container{
		id:          uuid.NewString(),
		factories:   registry,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:       newOrderedCache(),
		cycle:       newCycleDetector(),
		tracker:     newDepTracker(),
		initialized: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(c)
	}

	sort.SliceStable(c.extensions, func(i, j int) bool {
		return c.extensions[i].Order() < c.extensions[j].Order()
	})
	for _, ext := range c.extensions {
		if err := ext.Init(c); err != nil {
			return nil, fmt.Errorf("initializing extension %s: %w", ext.Name(), err)
		}
	}

	return c, nil
}

// Use registers an extension after construction.
func (c *Container) Use(ext Extension) error {
	c.extMu.Lock()
	c.extensions = append(c.extensions, ext)
	sort.SliceStable(c.extensions, func(i, j int) bool {
		return c.extensions[i].Order() < c.extensions[j].Order()
	})
	c.extMu.Unlock()

	return ext.Init(c)
}

// ID returns the container's unique identifier.
func (c *Container) ID() string {
	return c.id
}

func (c *Container) String() string {
	return "kiln.Container(" + c.id + ")"
}

// Parent returns the parent container, or nil.
func (c *Container) Parent() *Container {
	return c.parent
}

// Resolve returns the value for key, constructing it if needed. Singleton
// results are cached; transient factories run on every call. The entire
// call, including the factory invocation, is synchronous.
func (c *Container) Resolve(key string) (any, error) {
	c.mu.Lock()
	v, err := c.resolve(key, nil)
	c.mu.Unlock()
	c.flushNotices()
	return v, err
}

// resolve is the core state machine. c.mu must be held; nested resolution
// re-enters here directly through the tracking accessor.
func (c *Container) resolve(key string, chain []string) (any, error) {
	f, local := c.factories[key]

	if local && !f.transient {
		if v, ok := c.cache.Load(key); ok {
			return v, nil
		}
	}

	if !local {
		if c.parent != nil {
			v, err := c.parent.resolveAsParent(key, chain)
			var nf *NotFoundError
			if errors.As(err, &nf) && nf.Key == key {
				// Report the key set visible from here, not just the
				// ancestor's slice of it.
				return nil, c.notFound(key)
			}
			return v, err
		}
		return nil, c.notFound(key)
	}

	if c.cycle.isResolving(key) {
		return nil, &CycleError{Chain: appendChain(chain, key)}
	}

	c.cycle.enter(key)
	defer c.cycle.leave(key)

	acc := &trackingAccessor{
		chain:   appendChain(chain, key),
		resolve: c.resolve,
	}

	result, err := c.invoke(key, f, acc)
	if err != nil {
		return nil, err
	}
	if isNilResult(result) {
		return nil, &NilResultError{Key: key, Chain: acc.chain}
	}

	c.tracker.record(key, acc.reads)

	if !f.transient {
		for _, dep := range acc.reads {
			if df, ok := c.lookupFactory(dep); ok && df.transient {
				w := Warning{Kind: WarnScopeMismatch, Key: key, Dependency: dep}
				c.recordWarning(w)
				c.queueNotice(notice{warn: &w})
			}
		}
		c.cache.Store(key, result)
	}

	c.maybeInitAsync(key, result)

	return result, nil
}

func (c *Container) notFound(key string) *NotFoundError {
	registered := c.RegisteredKeys()
	return &NotFoundError{
		Key:        key,
		Registered: registered,
		Suggestion: closestKey(key, registered),
	}
}

// resolveAsParent serves a lookup that fell through from a child. The
// parent takes its own lock; locks are only ever acquired child-to-parent,
// so the chain cannot deadlock.
func (c *Container) resolveAsParent(key string, chain []string) (any, error) {
	c.mu.Lock()
	v, err := c.resolve(key, chain)
	c.mu.Unlock()
	c.flushNotices()
	return v, err
}

// invoke runs the factory through the extension chain, converting panics
// and foreign errors into FactoryError. Resolution errors bubbling up from
// nested keys pass through untouched.
func (c *Container) invoke(key string, f Factory, acc *trackingAccessor) (any, error) {
	op := &Operation{Kind: OpResolve, Key: key, Container: c}

	next := func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &FactoryError{Key: key, Chain: acc.chain, Cause: fmt.Errorf("panic: %v", r)}
			}
		}()
		return f.fn(acc)
	}

	result, err := c.applyExtensions(context.Background(), op, next)
	if err != nil {
		if !isResolutionError(err) {
			err = &FactoryError{Key: key, Chain: acc.chain, Cause: err}
		}
		// c.mu is held here; OnError fires after Resolve releases it.
		c.queueNotice(notice{err: err, op: op})
		return nil, err
	}
	return result, nil
}

// applyExtensions chains extension Wrap calls around next, last registered
// innermost.
func (c *Container) applyExtensions(ctx context.Context, op *Operation, next func() (any, error)) (any, error) {
	exts := c.snapshotExtensions()
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}
	return next()
}

func (c *Container) snapshotExtensions() []Extension {
	c.extMu.Lock()
	defer c.extMu.Unlock()
	exts := make([]Extension, len(c.extensions))
	copy(exts, c.extensions)
	return exts
}

func (c *Container) notifyError(err error, op *Operation) {
	for _, ext := range c.snapshotExtensions() {
		ext.OnError(err, op, c)
	}
}

func (c *Container) queueNotice(n notice) {
	c.noticeMu.Lock()
	c.notices = append(c.notices, n)
	c.noticeMu.Unlock()
}

// flushNotices delivers queued extension notifications. Callers must not
// hold c.mu.
func (c *Container) flushNotices() {
	c.noticeMu.Lock()
	pending := c.notices
	c.notices = nil
	c.noticeMu.Unlock()

	for _, n := range pending {
		if n.warn != nil {
			for _, ext := range c.snapshotExtensions() {
				ext.OnWarning(*n.warn, c)
			}
			continue
		}
		c.notifyError(n.err, n.op)
	}
}

// maybeInitAsync fires the initialization hook on the ordinary resolve
// path. The caller already has the instance, so a failing hook can only be
// recorded as a warning, never thrown.
func (c *Container) maybeInitAsync(key string, result any) {
	ini, ok := result.(Initializer)
	if !ok {
		return
	}

	c.initMu.Lock()
	if c.deferInit || c.initialized[key] {
		c.initMu.Unlock()
		return
	}
	c.initialized[key] = true
	c.initMu.Unlock()

	go func() {
		if err := ini.Init(context.Background()); err != nil {
			c.logger.Warn("async init failed", "container", c.id, "key", key, "error", err)
			c.addWarning(Warning{Kind: WarnAsyncInit, Key: key, Err: err})
		}
	}()
}

// CallOnInit explicitly triggers the initialization hook for a cached key.
// It is idempotent: keys that are not currently cached (transients are
// never cached), expose no hook, or were already initialized are no-ops.
func (c *Container) CallOnInit(ctx context.Context, key string) error {
	c.mu.Lock()
	v, cached := c.cache.Load(key)
	c.mu.Unlock()
	if !cached {
		return nil
	}

	ini, ok := v.(Initializer)
	if !ok {
		return nil
	}

	c.initMu.Lock()
	if c.initialized[key] {
		c.initMu.Unlock()
		return nil
	}
	c.initialized[key] = true
	c.initMu.Unlock()

	op := &Operation{Kind: OpInit, Key: key, Container: c}
	_, err := c.applyExtensions(ctx, op, func() (any, error) {
		return nil, ini.Init(ctx)
	})
	if err != nil {
		c.notifyError(err, op)
	}
	return err
}

// SetDeferInit toggles deferred-init mode. While on, the ordinary resolve
// path skips initialization hooks so a batch operation can trigger them
// explicitly in dependency order.
func (c *Container) SetDeferInit(on bool) {
	c.initMu.Lock()
	c.deferInit = on
	c.initMu.Unlock()
}

// lookupFactory finds the factory backing key, locally or in an ancestor.
// Registries are immutable after New, so no locks are needed.
func (c *Container) lookupFactory(key string) (Factory, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if f, ok := cur.factories[key]; ok {
			return f, true
		}
	}
	return Factory{}, false
}

// IsResolved reports whether key currently has a cached instance.
func (c *Container) IsResolved(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Has(key)
}

// ResolvedKeys returns cached keys in resolution (insertion) order.
func (c *Container) ResolvedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Keys()
}

// Cached returns a snapshot of the cache.
func (c *Container) Cached() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Snapshot()
}

// Factories returns a copy of the local registry.
func (c *Container) Factories() map[string]Factory {
	out := make(map[string]Factory, len(c.factories))
	for k, f := range c.factories {
		out[k] = f
	}
	return out
}

// DepGraph returns a snapshot of the observed dependency graph.
func (c *Container) DepGraph() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.snapshot()
}

// RegisteredKeys returns the sorted union of local and ancestor keys.
func (c *Container) RegisteredKeys() []string {
	set := make(map[string]bool)
	for cur := c; cur != nil; cur = cur.parent {
		for k := range cur.factories {
			set[k] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LocalKeys returns the sorted keys of the local registry only.
func (c *Container) LocalKeys() []string {
	keys := make([]string, 0, len(c.factories))
	for k := range c.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Warnings returns a snapshot of recorded diagnostics.
func (c *Container) Warnings() []Warning {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// addWarning records the warning and notifies extensions immediately. Only
// safe off the resolve path; resolve records and queues instead.
func (c *Container) addWarning(w Warning) {
	c.recordWarning(w)
	for _, ext := range c.snapshotExtensions() {
		ext.OnWarning(w, c)
	}
}

func (c *Container) recordWarning(w Warning) {
	c.warnMu.Lock()
	c.warnings = append(c.warnings, w)
	c.warnMu.Unlock()
}

// ClearWarnings drops all recorded warnings.
func (c *Container) ClearWarnings() {
	c.warnMu.Lock()
	c.warnings = nil
	c.warnMu.Unlock()
}

// ClearWarningsFor drops warnings that reference any of the given keys,
// either as subject or as offending dependency.
func (c *Container) ClearWarningsFor(keys ...string) {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}

	c.warnMu.Lock()
	kept := c.warnings[:0]
	for _, w := range c.warnings {
		if !w.references(set) {
			kept = append(kept, w)
		}
	}
	c.warnings = kept
	c.warnMu.Unlock()
}

// ClearInitState forgets that the given keys were initialized, so their
// hooks may fire again on the next resolution.
func (c *Container) ClearInitState(keys ...string) {
	c.initMu.Lock()
	for _, k := range keys {
		delete(c.initialized, k)
	}
	c.initMu.Unlock()
}

// ClearAllInitState forgets all initialization state.
func (c *Container) ClearAllInitState() {
	c.initMu.Lock()
	c.initialized = make(map[string]bool)
	c.initMu.Unlock()
}

// ClearDepGraph removes the recorded dependency entries for the given keys.
func (c *Container) ClearDepGraph(keys ...string) {
	c.mu.Lock()
	c.tracker.clear(keys...)
	c.mu.Unlock()
}

// ClearAllDepGraph removes the whole recorded dependency graph.
func (c *Container) ClearAllDepGraph() {
	c.mu.Lock()
	c.tracker.clearAll()
	c.mu.Unlock()
}

// Reset returns keys to the registered state: cache entries are dropped,
// init flags cleared and warnings referencing the keys pruned. With no
// arguments every cached key is reset. The next resolution re-runs the
// factory and re-fires initialization.
func (c *Container) Reset(keys ...string) {
	c.mu.Lock()
	if len(keys) == 0 {
		keys = c.cache.Keys()
	}
	for _, k := range keys {
		c.cache.Delete(k)
	}
	c.mu.Unlock()

	c.ClearInitState(keys...)
	c.ClearWarningsFor(keys...)
}

// appendChain copies chain and appends key, so recursive calls never alias
// each other's backing arrays.
func appendChain(chain []string, key string) []string {
	out := make([]string, len(chain)+1)
	copy(out, chain)
	out[len(chain)] = key
	return out
}

// Resolve resolves a key and asserts its type:
//
//	db, err := kiln.Resolve[*Database](c, "db")
func Resolve[T any](c *Container, key string) (T, error) {
	var zero T

	v, err := c.Resolve(key)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("key %q: expected %T, got %T", key, zero, v)
	}
	return typed, nil
}

// MustResolve is Resolve but panics on failure. Intended for wiring code
// where a resolution error is a programming bug.
func MustResolve[T any](c *Container, key string) T {
	v, err := Resolve[T](c, key)
	if err != nil {
		panic(err)
	}
	return v
}
