package menu

import (
	"context"
	"errors"
	"strings"
	"testing"

	kit "menubot/internal/transport"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	if err := reg.Register("main", NewTemplate()); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := reg.Register("main", NewTemplate()); !errors.Is(err, ErrDuplicateTemplate) {
		t.Fatalf("second Register err = %v, want ErrDuplicateTemplate", err)
	}
	if err := reg.Register(" ", NewTemplate()); !errors.Is(err, ErrEmptyTemplateID) {
		t.Fatalf("empty id err = %v", err)
	}
	if err := reg.Register("x", nil); !errors.Is(err, ErrNilTemplate) {
		t.Fatalf("nil template err = %v", err)
	}
	if !reg.Has("main") || reg.Has("missing") {
		t.Fatalf("Has mismatch")
	}
	if ids := reg.IDs(); len(ids) != 1 || ids[0] != "main" {
		t.Fatalf("IDs = %v", ids)
	}
}

func TestRegistryTrimsIDsOnLookup(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.MustRegister(" main ", NewTemplate().CB("A", noop))

	for _, id := range []string{" main ", "main", "main\n"} {
		if !reg.Has(id) {
			t.Fatalf("Has(%q) = false", id)
		}
		if _, err := reg.Get(id); err != nil {
			t.Fatalf("Get(%q) error: %v", id, err)
		}
		m, err := reg.Render(id)
		if err != nil {
			t.Fatalf("Render(%q) error: %v", id, err)
		}
		if m.TemplateID != "main" {
			t.Fatalf("Render(%q).TemplateID = %q", id, m.TemplateID)
		}
		if _, err := reg.Rerender(id, m.RenderID); err != nil {
			t.Fatalf("Rerender(%q) error: %v", id, err)
		}
	}
	if err := reg.Register("main", NewTemplate()); !errors.Is(err, ErrDuplicateTemplate) {
		t.Fatalf("Register(main) err = %v, want ErrDuplicateTemplate", err)
	}
}

func TestRegistryStoresCopy(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	tpl := NewTemplate().CB("A", noop)
	reg.MustRegister("main", tpl)
	tpl.CB("B", noop)

	got, err := reg.Get("main")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if n := len(got.Ops()); n != 1 {
		t.Fatalf("registered ops = %d, want 1", n)
	}
}

func TestRegistryRenderUnknown(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	m, err := reg.Render("nope")
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
	if m != nil {
		t.Fatalf("expected nil menu, got %+v", m)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("Get err = %v", err)
	}
}

func TestRegistryRenderIDsAreUniqueAndSafe(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().CB("A", noop))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		m, err := reg.Render("main")
		if err != nil {
			t.Fatalf("Render error: %v", err)
		}
		if len(m.RenderID) != 22 || strings.Contains(m.RenderID, ":") {
			t.Fatalf("render id %q has unexpected form", m.RenderID)
		}
		if seen[m.RenderID] {
			t.Fatalf("render id %q repeated", m.RenderID)
		}
		seen[m.RenderID] = true
	}
}

type pressLog struct {
	presses []*Press
}

func (l *pressLog) handler(ctx context.Context, p *Press) error {
	l.presses = append(l.presses, p)
	return nil
}

func TestDispatchInMemory(t *testing.T) {
	t.Parallel()
	var log pressLog
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().CB("A", noop).CB("B", log.handler, "b-payload"))

	m, err := reg.Render("main")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	nextCalled := false
	cb := &kit.Callback{ID: "1", Data: m.Wire[0][1].CallbackData}
	err = reg.Dispatch(context.Background(), cb, func(context.Context) error {
		nextCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if nextCalled {
		t.Fatalf("next must not run for a resolved press")
	}
	if len(log.presses) != 1 {
		t.Fatalf("presses = %d, want 1", len(log.presses))
	}
	p := log.presses[0]
	if p.TemplateID != "main" || p.Payload != "b-payload" || p.Cold || p.Callback != cb {
		t.Fatalf("press = %+v", p)
	}
	if p.Address.Row != 0 || p.Address.Col != 1 {
		t.Fatalf("address = %+v", p.Address)
	}
}

func TestDispatchFailsOpen(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().URL("U", "https://x").CB("A", noop))
	m, err := reg.Render("main")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	tests := []struct {
		name string
		data string
	}{
		{name: "foreign payload", data: "settings:open"},
		{name: "malformed", data: "a:b:c"},
		{name: "unknown render", data: "neverseen:0:0"},
		{name: "native cell", data: m.RenderID + ":0:0"},
		{name: "out of range", data: m.RenderID + ":3:0"},
	}
	for _, tt := range tests {
		calls := 0
		err := reg.Dispatch(context.Background(), &kit.Callback{Data: tt.data}, func(context.Context) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("%s: Dispatch error: %v", tt.name, err)
		}
		if calls != 1 {
			t.Fatalf("%s: next calls = %d, want 1", tt.name, calls)
		}
	}
}

type fakeResolver struct {
	data map[string]RenderedMenuData
	err  error
}

func (f fakeResolver) MenuData(ctx context.Context, id string) (RenderedMenuData, bool, error) {
	if f.err != nil {
		return RenderedMenuData{}, false, f.err
	}
	d, ok := f.data[id]
	return d, ok, nil
}

func TestDispatchColdPath(t *testing.T) {
	t.Parallel()
	var log pressLog
	tpl := NewTemplate().CB("A", noop).Row().CB("B", log.handler, "cold")

	// Render in one registry, resolve in a fresh one as after a restart.
	first := NewRegistry()
	first.MustRegister("main", tpl)
	m, err := first.Render("main")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	res := fakeResolver{data: map[string]RenderedMenuData{m.RenderID: {TemplateID: "main", Timestamp: 1}}}
	second := NewRegistry(WithResolver(res))
	second.MustRegister("main", tpl)

	err = second.Dispatch(context.Background(), &kit.Callback{Data: m.Wire[1][0].CallbackData}, nil)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(log.presses) != 1 || !log.presses[0].Cold || log.presses[0].Payload != "cold" {
		t.Fatalf("presses = %+v", log.presses)
	}
}

func TestDispatchColdPathUnregisteredTemplate(t *testing.T) {
	t.Parallel()
	res := fakeResolver{data: map[string]RenderedMenuData{"R": {TemplateID: "gone"}}}
	reg := NewRegistry(WithResolver(res))
	called := false
	err := reg.Dispatch(context.Background(), &kit.Callback{Data: "R:0:0"}, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v, want fail open", err, called)
	}
}

func TestDispatchSurfacesStorageErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk on fire")
	reg := NewRegistry(WithResolver(fakeResolver{err: boom}))
	err := reg.Dispatch(context.Background(), &kit.Callback{Data: "R:0:0"}, nil)
	if !errors.Is(err, ErrStorage) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want storage failure wrapping cause", err)
	}
}

func TestDispatchReturnsHandlerError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	reg := NewRegistry(WithIDGenerator(func() string { return "fixed" }))
	reg.MustRegister("main", NewTemplate().CB("A", func(context.Context, *Press) error { return boom }))
	if _, err := reg.Render("main"); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if err := reg.Dispatch(context.Background(), &kit.Callback{Data: "fixed:0:0"}, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want handler error", err)
	}
}

func TestMiddlewarePassesCallbackAlong(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	var got *kit.Callback
	h := reg.Middleware()(func(ctx context.Context, cb *kit.Callback) error {
		got = cb
		return nil
	})
	cb := &kit.Callback{Data: "other"}
	if err := h(context.Background(), cb); err != nil {
		t.Fatalf("middleware error: %v", err)
	}
	if got != cb {
		t.Fatalf("next did not receive the callback")
	}
}
