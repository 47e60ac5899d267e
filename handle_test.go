package kiln

import "testing"

func TestHandleGetAndPeek(t *testing.T) {
	type config struct{ port int }

	c, _ := New(Factories{
		"config": func(acc Accessor) (any, error) {
			return &config{port: 8080}, nil
		},
	})

	h := Lookup[*config](c, "config")

	if _, ok := h.Peek(); ok {
		t.Error("expected nothing cached before Get")
	}

	cfg, err := h.Get()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.port)
	}

	peeked, ok := h.Peek()
	if !ok || peeked != cfg {
		t.Error("expected Peek to return the cached instance")
	}
	if !h.IsCached() {
		t.Error("expected IsCached true after Get")
	}
}

func TestHandleReload(t *testing.T) {
	type session struct{ n int }

	n := 0
	c, _ := New(Factories{
		"session": func(acc Accessor) (any, error) {
			n++
			return &session{n: n}, nil
		},
	})

	h := Lookup[*session](c, "session")
	first, _ := h.Get()
	second, err := h.Reload()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first == second {
		t.Error("expected fresh instance after reload")
	}
}

func TestHandleWrongType(t *testing.T) {
	c, _ := New(Factories{"answer": 42})

	h := Lookup[string](c, "answer")
	if _, err := h.Get(); err == nil {
		t.Error("expected type mismatch error")
	}

	c.Resolve("answer")
	if _, ok := h.Peek(); ok {
		t.Error("expected Peek to fail on type mismatch")
	}
}
