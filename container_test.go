package kiln

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveValue(t *testing.T) {
	c, err := New(Factories{"answer": 42})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	val, err := c.Resolve("answer")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %v", val)
	}
}

func TestResolveFactoryChain(t *testing.T) {
	c, err := New(Factories{
		"a": func(acc Accessor) (any, error) { return 1, nil },
		"b": func(acc Accessor) (any, error) {
			a, err := Get[int](acc, "a")
			if err != nil {
				return nil, err
			}
			return a + 1, nil
		},
		"c": func(acc Accessor) (any, error) {
			b, err := Get[int](acc, "b")
			if err != nil {
				return nil, err
			}
			return b + 1, nil
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	val, err := Resolve[int](c, "c")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != 3 {
		t.Errorf("expected 3, got %d", val)
	}

	graph := c.DepGraph()
	if len(graph["b"]) != 1 || graph["b"][0] != "a" {
		t.Errorf("expected b -> [a], got %v", graph["b"])
	}
	if len(graph["c"]) != 1 || graph["c"][0] != "b" {
		t.Errorf("expected c -> [b], got %v", graph["c"])
	}
	if len(graph["a"]) != 0 {
		t.Errorf("expected a -> [], got %v", graph["a"])
	}
}

func TestSingletonIdentity(t *testing.T) {
	type service struct{ n int }

	calls := 0
	c, _ := New(Factories{
		"svc": func(acc Accessor) (any, error) {
			calls++
			return &service{n: calls}, nil
		},
	})

	first, err := Resolve[*service](c, "svc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _ := Resolve[*service](c, "svc")

	if first != second {
		t.Error("expected identical instance on second resolve")
	}
	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
}

func TestTransientIsolation(t *testing.T) {
	type token struct{ n int }

	n := 0
	c, _ := New(Factories{
		"token": Provide(func(acc Accessor) (any, error) {
			n++
			return &token{n: n}, nil
		}, AsTransient()),
	})

	first, _ := Resolve[*token](c, "token")
	second, _ := Resolve[*token](c, "token")

	if first == second {
		t.Error("expected distinct transient instances")
	}
	if c.IsResolved("token") {
		t.Error("transient result must never be cached")
	}
	if len(c.ResolvedKeys()) != 0 {
		t.Errorf("expected empty cache, got %v", c.ResolvedKeys())
	}
}

func TestNotFound(t *testing.T) {
	c, _ := New(Factories{"database": 1, "logger": 2})

	_, err := c.Resolve("databse")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if nf.Key != "databse" {
		t.Errorf("expected key databse, got %q", nf.Key)
	}
	if nf.Suggestion != "database" {
		t.Errorf("expected suggestion database, got %q", nf.Suggestion)
	}
	if len(nf.Registered) != 2 {
		t.Errorf("expected 2 registered keys, got %v", nf.Registered)
	}
}

func TestCycleDetection(t *testing.T) {
	c, _ := New(Factories{
		"a": func(acc Accessor) (any, error) { return acc.Get("b") },
		"b": func(acc Accessor) (any, error) { return acc.Get("a") },
		"x": func(acc Accessor) (any, error) { return "fine", nil },
	})

	_, err := c.Resolve("a")
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}

	want := []string{"a", "b", "a"}
	if len(cycle.Chain) != len(want) {
		t.Fatalf("expected chain %v, got %v", want, cycle.Chain)
	}
	for i := range want {
		if cycle.Chain[i] != want[i] {
			t.Fatalf("expected chain %v, got %v", want, cycle.Chain)
		}
	}

	// The guard must fully unwind: unrelated keys stay resolvable.
	val, err := c.Resolve("x")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "fine" {
		t.Errorf("expected fine, got %v", val)
	}
}

func TestFailedResolveLeavesNothingCached(t *testing.T) {
	attempts := 0
	c, _ := New(Factories{
		"flaky": func(acc Accessor) (any, error) {
			attempts++
			if attempts == 1 {
				return nil, fmt.Errorf("cold start")
			}
			return "warm", nil
		},
	})

	if _, err := c.Resolve("flaky"); err == nil {
		t.Fatal("expected first resolve to fail")
	}
	if c.IsResolved("flaky") {
		t.Error("failed resolution must not cache")
	}

	val, err := c.Resolve("flaky")
	if err != nil {
		t.Fatalf("expected retry to re-run factory, got %v", err)
	}
	if val != "warm" {
		t.Errorf("expected warm, got %v", val)
	}
}

func TestNilResult(t *testing.T) {
	c, _ := New(Factories{
		"empty": func(acc Accessor) (any, error) { return nil, nil },
	})

	_, err := c.Resolve("empty")
	var nr *NilResultError
	if !errors.As(err, &nr) {
		t.Fatalf("expected NilResultError, got %v", err)
	}
	if nr.Key != "empty" {
		t.Errorf("expected key empty, got %q", nr.Key)
	}
}

func TestTypedNilResult(t *testing.T) {
	type widget struct{}
	c, _ := New(Factories{
		"ptr": func(acc Accessor) (any, error) { return (*widget)(nil), nil },
		"map": func(acc Accessor) (any, error) {
			var m map[string]int
			return m, nil
		},
	})

	for _, key := range []string{"ptr", "map"} {
		_, err := c.Resolve(key)
		var nr *NilResultError
		if !errors.As(err, &nr) {
			t.Fatalf("key %q: expected NilResultError, got %v", key, err)
		}
		if c.IsResolved(key) {
			t.Errorf("key %q: typed nil must not be cached", key)
		}
	}
}

func TestFactoryErrorWrapping(t *testing.T) {
	boom := errors.New("boom")
	c, _ := New(Factories{
		"bad": func(acc Accessor) (any, error) { return nil, boom },
		"outer": func(acc Accessor) (any, error) {
			return acc.Get("bad")
		},
	})

	_, err := c.Resolve("outer")
	var fe *FactoryError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FactoryError, got %v", err)
	}
	// The foreign error was wrapped once, at "bad"; the outer factory
	// passes the resolution error through unwrapped.
	if fe.Key != "bad" {
		t.Errorf("expected wrap at bad, got %q", fe.Key)
	}
	if !errors.Is(err, boom) {
		t.Error("expected cause to be preserved")
	}
}

func TestFactoryPanicRecovered(t *testing.T) {
	c, _ := New(Factories{
		"explosive": func(acc Accessor) (any, error) { panic("kaboom") },
	})

	_, err := c.Resolve("explosive")
	var fe *FactoryError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FactoryError, got %v", err)
	}

	// The container stays usable after a panic.
	if c.cycle.isResolving("explosive") {
		t.Error("cycle guard must unwind on panic")
	}
}

func TestParentFallthrough(t *testing.T) {
	parent, _ := New(Factories{
		"db":     "parent-db",
		"shared": "from-parent",
	})
	child, _ := New(Factories{
		"db": "child-db",
	}, WithParent(parent))

	// Local registration shadows the parent, resolved or not.
	val, err := child.Resolve("db")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if val != "child-db" {
		t.Errorf("expected child-db, got %v", val)
	}

	// Unregistered keys fall through.
	val, _ = child.Resolve("shared")
	if val != "from-parent" {
		t.Errorf("expected from-parent, got %v", val)
	}

	// The fallthrough cached in the parent, not the child.
	if child.IsResolved("shared") {
		t.Error("child cache must not hold parent-resolved keys")
	}
	if !parent.IsResolved("shared") {
		t.Error("expected parent to cache its own resolution")
	}
}

func TestNotFoundAcrossChain(t *testing.T) {
	parent, _ := New(Factories{"root-svc": 1})
	child, _ := New(Factories{"leaf-svc": 2}, WithParent(parent))

	_, err := child.Resolve("nothing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(nf.Registered) != 2 {
		t.Errorf("expected union of child and parent keys, got %v", nf.Registered)
	}
}

func TestScopeMismatchWarning(t *testing.T) {
	c, _ := New(Factories{
		"tmp": Provide(func(acc Accessor) (any, error) { return "t", nil }, AsTransient()),
		"svc": func(acc Accessor) (any, error) {
			return acc.Get("tmp")
		},
	})

	if _, err := c.Resolve("svc"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	warnings := c.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	w := warnings[0]
	if w.Kind != WarnScopeMismatch || w.Key != "svc" || w.Dependency != "tmp" {
		t.Errorf("unexpected warning %+v", w)
	}
}

type initRecorder struct {
	count  atomic.Int32
	err    error
	inited chan struct{}
}

func newInitRecorder(err error) *initRecorder {
	return &initRecorder{err: err, inited: make(chan struct{}, 16)}
}

func (r *initRecorder) Init(ctx context.Context) error {
	r.count.Add(1)
	r.inited <- struct{}{}
	return r.err
}

func waitWarnings(t *testing.T, c *Container, n int) []Warning {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		ws := c.Warnings()
		if len(ws) >= n {
			return ws
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d warnings, have %d", n, len(ws))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAsyncInitFiresOnce(t *testing.T) {
	rec := newInitRecorder(nil)
	c, _ := New(Factories{"svc": rec})

	c.Resolve("svc")
	<-rec.inited
	c.Resolve("svc")

	time.Sleep(20 * time.Millisecond)
	if got := rec.count.Load(); got != 1 {
		t.Errorf("expected init to fire once, fired %d times", got)
	}
}

func TestAsyncInitFailureBecomesWarning(t *testing.T) {
	rec := newInitRecorder(errors.New("init blew up"))
	c, _ := New(Factories{"svc": rec})

	if _, err := c.Resolve("svc"); err != nil {
		t.Fatalf("async init failure must not fail resolve, got %v", err)
	}

	ws := waitWarnings(t, c, 1)
	if ws[0].Kind != WarnAsyncInit || ws[0].Key != "svc" {
		t.Errorf("unexpected warning %+v", ws[0])
	}
	if ws[0].Err == nil {
		t.Error("expected warning to carry the init error")
	}
}

func TestCallOnInitIdempotent(t *testing.T) {
	rec := newInitRecorder(nil)
	c, _ := New(Factories{"svc": rec})
	c.SetDeferInit(true)

	c.Resolve("svc")
	if err := c.CallOnInit(context.Background(), "svc"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := c.CallOnInit(context.Background(), "svc"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := rec.count.Load(); got != 1 {
		t.Errorf("expected init once, got %d", got)
	}

	// Never-cached keys (transients included) are a no-op.
	if err := c.CallOnInit(context.Background(), "missing"); err != nil {
		t.Errorf("expected no-op for uncached key, got %v", err)
	}
}

func TestDeferInitSkipsHook(t *testing.T) {
	rec := newInitRecorder(nil)
	c, _ := New(Factories{"svc": rec})

	c.SetDeferInit(true)
	c.Resolve("svc")

	time.Sleep(20 * time.Millisecond)
	if got := rec.count.Load(); got != 0 {
		t.Errorf("expected deferred init, fired %d times", got)
	}
}

func TestResetRoundTrip(t *testing.T) {
	type widget struct {
		rec *initRecorder
	}

	c, _ := New(Factories{
		"w": func(acc Accessor) (any, error) {
			return &widget{rec: newInitRecorder(nil)}, nil
		},
	})

	first, _ := Resolve[*widget](c, "w")
	second, _ := Resolve[*widget](c, "w")
	if first != second {
		t.Fatal("expected cached instance before reset")
	}

	c.Reset("w")
	if c.IsResolved("w") {
		t.Fatal("expected cache entry dropped")
	}

	third, _ := Resolve[*widget](c, "w")
	if third == first {
		t.Error("expected new instance identity after reset")
	}
}

func TestResetReFiresInit(t *testing.T) {
	rec := newInitRecorder(nil)
	c, _ := New(Factories{"svc": rec})

	c.Resolve("svc")
	<-rec.inited

	c.Reset("svc")
	c.Resolve("svc")
	<-rec.inited

	if got := rec.count.Load(); got != 2 {
		t.Errorf("expected init re-fired after reset, got %d", got)
	}
}

func TestResetPrunesWarnings(t *testing.T) {
	c, _ := New(Factories{
		"tmp": Provide(func(acc Accessor) (any, error) { return "t", nil }, AsTransient()),
		"svc": func(acc Accessor) (any, error) { return acc.Get("tmp") },
		"other": func(acc Accessor) (any, error) {
			return acc.Get("tmp")
		},
	})

	c.Resolve("svc")
	c.Resolve("other")
	if len(c.Warnings()) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(c.Warnings()))
	}

	c.Reset("svc")
	ws := c.Warnings()
	if len(ws) != 1 || ws[0].Key != "other" {
		t.Errorf("expected only other's warning to survive, got %+v", ws)
	}
}

func TestClearDepGraph(t *testing.T) {
	c, _ := New(Factories{
		"a": 1,
		"b": func(acc Accessor) (any, error) { return acc.Get("a") },
	})
	c.Resolve("b")

	if len(c.DepGraph()) == 0 {
		t.Fatal("expected recorded graph")
	}

	c.ClearDepGraph("b")
	if _, ok := c.DepGraph()["b"]; ok {
		t.Error("expected b's entry removed")
	}

	c.ClearAllDepGraph()
	if len(c.DepGraph()) != 0 {
		t.Error("expected empty graph")
	}
}

func TestDepGraphReflectsLatestResolution(t *testing.T) {
	useAlt := false
	c, _ := New(Factories{
		"primary": 1,
		"alt":     2,
		"picky": func(acc Accessor) (any, error) {
			if useAlt {
				return acc.Get("alt")
			}
			return acc.Get("primary")
		},
	})

	c.Resolve("picky")
	if deps := c.DepGraph()["picky"]; len(deps) != 1 || deps[0] != "primary" {
		t.Fatalf("expected picky -> [primary], got %v", deps)
	}

	useAlt = true
	c.Reset("picky")
	c.Resolve("picky")

	// Overwritten, not unioned.
	if deps := c.DepGraph()["picky"]; len(deps) != 1 || deps[0] != "alt" {
		t.Errorf("expected picky -> [alt], got %v", deps)
	}
}

func TestResolvedKeysOrder(t *testing.T) {
	c, _ := New(Factories{"one": 1, "two": 2, "three": 3})

	c.Resolve("two")
	c.Resolve("one")
	c.Resolve("three")

	keys := c.ResolvedKeys()
	want := []string{"two", "one", "three"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, keys)
		}
	}
}

func TestRegistrationValidation(t *testing.T) {
	if _, err := New(Factories{"": 1}); err == nil {
		t.Error("expected empty key to be rejected")
	}
	if _, err := New(Factories{"resolve": 1}); err == nil {
		t.Error("expected reserved key to be rejected")
	}
	if _, err := New(Factories{"nothing": nil}); err == nil {
		t.Error("expected nil value to be rejected")
	}
	var fn FactoryFunc
	if _, err := New(Factories{"fn": fn}); err == nil {
		t.Error("expected nil factory func to be rejected")
	}
}
