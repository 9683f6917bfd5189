package menu

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kit "menubot/internal/transport"
)

type fakeSender struct {
	sent    []kit.Outgoing
	ref     kit.MessageRef
	editRef kit.MessageRef
	err     error
}

func (f *fakeSender) Send(ctx context.Context, to kit.ChatTarget, msg kit.Outgoing) (kit.MessageRef, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	return f.ref, nil
}

func (f *fakeSender) Edit(ctx context.Context, ref kit.MessageRef, msg kit.Outgoing) (kit.MessageRef, error) {
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	return f.editRef, nil
}

type failingStorage struct {
	err error
}

func (f failingStorage) Read(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStorage) Write(context.Context, string, []byte) error        { return f.err }

func fixedClock() time.Time { return time.UnixMilli(1_700_000_000_000) }

func newTestMenu(t *testing.T, reg *Registry, id string) *RenderedMenu {
	t.Helper()
	m, err := reg.Render(id)
	if err != nil {
		t.Fatalf("Render(%q) error: %v", id, err)
	}
	return m
}

func TestWrapStripsHandlersAndPersists(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	nav := NewNavigator(store, WithClock(fixedClock))
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().Text("Main").CB("A", noop))
	m := newTestMenu(t, reg, "main")

	fs := &fakeSender{ref: kit.MessageRef{ChatID: 42, MessageID: 7}}
	s := nav.Wrap(fs)
	if _, err := s.Send(context.Background(), kit.ChatTarget{ChatID: 42}, kit.Outgoing{ReplyMarkup: m}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	out := fs.sent[0]
	kb, ok := out.ReplyMarkup.(Keyboard)
	if !ok {
		t.Fatalf("reply markup = %T, want Keyboard", out.ReplyMarkup)
	}
	if kb[0][0].CallbackData != m.Wire[0][0].CallbackData {
		t.Fatalf("wire keyboard altered")
	}
	if out.Text != "Main" || out.Kind != kit.KindText {
		t.Fatalf("outgoing = %+v, want text filled from render", out)
	}

	raw, ok, err := store.Read(context.Background(), "menu:menus:"+m.RenderID)
	if err != nil || !ok {
		t.Fatalf("menu record missing: ok=%v err=%v", ok, err)
	}
	var data RenderedMenuData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.TemplateID != "main" || data.Timestamp != fixedClock().UnixMilli() {
		t.Fatalf("menu data = %+v", data)
	}

	raw, ok, _ = store.Read(context.Background(), "menu:regular:42:7")
	if !ok {
		t.Fatalf("navigation record missing")
	}
	var h NavigationHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(h.Records) != 1 || h.Records[0].RenderID != m.RenderID || h.Records[0].TemplateID != "main" {
		t.Fatalf("history = %+v", h)
	}
}

func TestWrapDedupsSameRender(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	nav := NewNavigator(store)
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().CB("A", noop))
	reg.MustRegister("settings", NewTemplate().CB("B", noop))
	ref := kit.MessageRef{ChatID: 1, MessageID: 2}
	s := nav.Wrap(&fakeSender{ref: ref, editRef: ref})
	ctx := context.Background()

	m := newTestMenu(t, reg, "main")
	if _, err := s.Send(ctx, ref.Target(), m.Outgoing()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, err := s.Edit(ctx, ref, m.Outgoing()); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	h, err := nav.History(ctx, ref)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(h.Records) != 1 {
		t.Fatalf("history length = %d, want 1", len(h.Records))
	}

	other := newTestMenu(t, reg, "settings")
	if _, err := s.Edit(ctx, ref, other.Outgoing()); err != nil {
		t.Fatalf("Edit error: %v", err)
	}
	h, _ = nav.History(ctx, ref)
	if len(h.Records) != 2 || h.Records[1].TemplateID != "settings" {
		t.Fatalf("history = %+v, want two records", h.Records)
	}
}

func TestWrapFailedSendLeavesNoTrace(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	nav := NewNavigator(store)
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().CB("A", noop))
	m := newTestMenu(t, reg, "main")

	boom := errors.New("telegram down")
	s := nav.Wrap(&fakeSender{err: boom})
	_, err := s.Send(context.Background(), kit.ChatTarget{ChatID: 1}, m.Outgoing())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Fatalf("storage keys = %v, want none", keys)
	}
}

func TestWrapPassesPlainPayloads(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	nav := NewNavigator(store)
	fs := &fakeSender{ref: kit.MessageRef{ChatID: 1, MessageID: 1}}
	kb := Keyboard{{{Text: "x", CallbackData: "x"}}}
	if _, err := nav.Wrap(fs).Send(context.Background(), kit.ChatTarget{ChatID: 1}, kit.Outgoing{Text: "hi", ReplyMarkup: kb}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if _, ok := fs.sent[0].ReplyMarkup.(Keyboard); !ok {
		t.Fatalf("plain keyboard rewritten to %T", fs.sent[0].ReplyMarkup)
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Fatalf("storage keys = %v, want none", keys)
	}
}

func TestRecordInlineAndUnknownIdentity(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	nav := NewNavigator(store, WithPrefix("bot"))
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().CB("A", noop))
	ctx := context.Background()

	m := newTestMenu(t, reg, "main")
	if err := nav.Record(ctx, kit.MessageRef{InlineMessageID: "AAQ"}, m); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if _, ok, _ := store.Read(ctx, "bot:inline:AAQ"); !ok {
		t.Fatalf("inline history missing")
	}

	m2 := newTestMenu(t, reg, "main")
	if err := nav.Record(ctx, kit.MessageRef{}, m2); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if _, ok, _ := store.Read(ctx, "bot:menus:"+m2.RenderID); !ok {
		t.Fatalf("menu data must be written without message identity")
	}
	if got := len(store.Keys()); got != 3 {
		t.Fatalf("keys = %d, want 3", got)
	}
}

func TestRecordStorageFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("io")
	nav := NewNavigator(failingStorage{err: boom})
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate())
	m := newTestMenu(t, reg, "main")

	s := nav.Wrap(&fakeSender{ref: kit.MessageRef{ChatID: 1, MessageID: 1}})
	_, err := s.Send(context.Background(), kit.ChatTarget{ChatID: 1}, m.Outgoing())
	if !errors.Is(err, ErrStorage) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want storage failure", err)
	}
}

func TestBackRewindsHistory(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	nav := NewNavigator(store)
	reg := NewRegistry(WithResolver(nav))
	reg.MustRegister("main", NewTemplate().CB("A", noop))
	reg.MustRegister("settings", NewTemplate().CB("B", noop))
	ref := kit.MessageRef{ChatID: 5, MessageID: 9}
	ctx := context.Background()
	s := nav.Wrap(&fakeSender{ref: ref, editRef: ref})

	home := newTestMenu(t, reg, "main")
	if _, err := s.Send(ctx, ref.Target(), home.Outgoing()); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	settings := newTestMenu(t, reg, "settings")
	if _, err := s.Edit(ctx, ref, settings.Outgoing()); err != nil {
		t.Fatalf("Edit error: %v", err)
	}

	prev, ok, err := nav.Back(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("Back ok=%v err=%v", ok, err)
	}
	if prev.RenderID != home.RenderID || prev.TemplateID != "main" {
		t.Fatalf("prev = %+v", prev)
	}
	if h, _ := nav.History(ctx, ref); len(h.Records) != 2 {
		t.Fatalf("Back changed the history: %+v", h.Records)
	}

	if err := nav.Pop(ctx, ref); err != nil {
		t.Fatalf("Pop error: %v", err)
	}
	h, _ := nav.History(ctx, ref)
	if len(h.Records) != 1 || h.Records[0].RenderID != home.RenderID {
		t.Fatalf("history after pop = %+v", h.Records)
	}

	if _, ok, _ := nav.Back(ctx, ref); ok {
		t.Fatalf("Back at root must report no previous record")
	}
	if err := nav.Pop(ctx, ref); err != nil {
		t.Fatalf("Pop at root error: %v", err)
	}
	if h, _ := nav.History(ctx, ref); len(h.Records) != 1 {
		t.Fatalf("Pop dropped the root record: %+v", h.Records)
	}
}

// writeLog records every Write on top of a MemoryStorage.
type writeLog struct {
	*MemoryStorage
	writes map[string][][]byte
}

func (w *writeLog) Write(ctx context.Context, key string, value []byte) error {
	w.writes[key] = append(w.writes[key], append([]byte(nil), value...))
	return w.MemoryStorage.Write(ctx, key, value)
}

func TestRecordSameRenderRewritesHistoryUnchanged(t *testing.T) {
	t.Parallel()
	now := fixedClock()
	store := &writeLog{MemoryStorage: NewMemoryStorage(), writes: map[string][][]byte{}}
	nav := NewNavigator(store, WithClock(func() time.Time { return now }))
	reg := NewRegistry()
	reg.MustRegister("main", NewTemplate().CB("A", noop))
	ref := kit.MessageRef{ChatID: 1, MessageID: 2}
	ctx := context.Background()

	m := newTestMenu(t, reg, "main")
	if err := nav.Record(ctx, ref, m); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	now = now.Add(time.Hour)
	if err := nav.Record(ctx, ref, m); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	writes := store.writes["menu:regular:1:2"]
	if len(writes) != 2 {
		t.Fatalf("history written %d times, want 2", len(writes))
	}
	if string(writes[0]) != string(writes[1]) {
		t.Fatalf("repeat record changed the history:\n%s\n%s", writes[0], writes[1])
	}
	h, _ := nav.History(ctx, ref)
	if len(h.Records) != 1 || h.Records[0].Timestamp != fixedClock().UnixMilli() {
		t.Fatalf("history = %+v", h.Records)
	}
}

func TestNavigatorResolvesColdDispatch(t *testing.T) {
	t.Parallel()
	store := NewMemoryStorage()
	var log pressLog
	tpl := NewTemplate().CB("A", log.handler)

	nav := NewNavigator(store)
	first := NewRegistry()
	first.MustRegister("main", tpl)
	m := newTestMenu(t, first, "main")
	ref := kit.MessageRef{ChatID: 3, MessageID: 4}
	if _, err := nav.Wrap(&fakeSender{ref: ref}).Send(context.Background(), ref.Target(), m.Outgoing()); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	restarted := NewRegistry(WithResolver(NewNavigator(store)))
	restarted.MustRegister("main", tpl)
	cb := &kit.Callback{ChatID: 3, MessageID: 4, Data: m.Wire[0][0].CallbackData}
	if err := restarted.Dispatch(context.Background(), cb, nil); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(log.presses) != 1 || !log.presses[0].Cold {
		t.Fatalf("presses = %+v, want one cold press", log.presses)
	}
}

func TestNavKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ref  kit.MessageRef
		want string
		ok   bool
	}{
		{ref: kit.MessageRef{ChatID: -100, MessageID: 5}, want: "regular:-100:5", ok: true},
		{ref: kit.MessageRef{InlineMessageID: "abc"}, want: "inline:abc", ok: true},
		{ref: kit.MessageRef{ChatID: 1}, ok: false},
		{ref: kit.MessageRef{}, ok: false},
	}
	for _, tt := range tests {
		got, ok := NavKey(tt.ref)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("NavKey(%+v) = %q,%v want %q,%v", tt.ref, got, ok, tt.want, tt.ok)
		}
	}
}
