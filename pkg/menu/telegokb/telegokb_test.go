package telegokb

import (
	"context"
	"testing"

	"github.com/mymmrac/telego"

	"menubot/pkg/menu"
)

func TestMarkup(t *testing.T) {
	reg := menu.NewRegistry(menu.WithIDGenerator(func() string { return "r9" }))
	noop := func(context.Context, *menu.Press) error { return nil }
	reg.MustRegister("main", menu.NewTemplate().
		URL("Docs", "https://example.org").
		CB("Next", noop).
		Row().
		WebApp("App", "https://example.org/app"))

	m, err := reg.Render("main")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	kb := Markup(m.Wire)
	if len(kb.InlineKeyboard) != 2 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("shape = %+v", kb.InlineKeyboard)
	}
	if got := kb.InlineKeyboard[0][0]; got.URL != "https://example.org" || got.CallbackData != "" {
		t.Fatalf("url button = %+v", got)
	}
	if got := kb.InlineKeyboard[0][1]; got.CallbackData != "r9:0:1" {
		t.Fatalf("handler button = %+v", got)
	}
	if got := kb.InlineKeyboard[1][0]; got.WebApp == nil || got.WebApp.URL != "https://example.org/app" {
		t.Fatalf("web app button = %+v", got)
	}
}

func TestCallback(t *testing.T) {
	q := telego.CallbackQuery{
		ID:   "cb",
		From: telego.User{ID: 3},
		Message: &telego.Message{
			MessageID:       11,
			MessageThreadID: 4,
			Chat:            telego.Chat{ID: 77},
		},
		Data: "r9:0:1",
	}
	cb := Callback(q)
	if cb.ChatID != 77 || cb.MessageID != 11 || cb.ThreadID != 4 || cb.FromID != 3 {
		t.Fatalf("callback = %+v", cb)
	}
	if addr, ok := menu.ParseAddress(cb.Data); !ok || addr.Col != 1 {
		t.Fatalf("address = %+v (%v)", addr, ok)
	}

	inline := Callback(telego.CallbackQuery{ID: "cb2", InlineMessageID: "IM", Data: "r9:0:0"})
	if inline.InlineMessageID != "IM" || inline.ChatID != 0 {
		t.Fatalf("inline callback = %+v", inline)
	}
}
