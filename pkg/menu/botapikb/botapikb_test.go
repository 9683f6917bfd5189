package botapikb

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"menubot/pkg/menu"
)

func TestMarkup(t *testing.T) {
	reg := menu.NewRegistry(menu.WithIDGenerator(func() string { return "r1" }))
	noop := func(context.Context, *menu.Press) error { return nil }
	reg.MustRegister("main", menu.NewTemplate().
		CB("A", noop).CB("B", noop).
		Row().
		URL("Docs", "https://example.org").
		SwitchInline("Share", "menu"))

	m, err := reg.Render("main")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	kb := Markup(m.Wire)
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(kb.InlineKeyboard))
	}
	first := kb.InlineKeyboard[0]
	if first[1].CallbackData == nil || *first[1].CallbackData != "r1:0:1" {
		t.Fatalf("second handler button = %+v", first[1])
	}
	second := kb.InlineKeyboard[1]
	if second[0].URL == nil || *second[0].URL != "https://example.org" {
		t.Fatalf("url button = %+v", second[0])
	}
	if second[1].SwitchInlineQuery == nil || *second[1].SwitchInlineQuery != "menu" {
		t.Fatalf("switch button = %+v", second[1])
	}
}

func TestCallback(t *testing.T) {
	q := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 9},
		Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: -100}},
		Data:    "r1:0:1",
	}
	cb := Callback(q)
	if cb.ChatID != -100 || cb.MessageID != 5 || cb.FromID != 9 || cb.Data != "r1:0:1" {
		t.Fatalf("callback = %+v", cb)
	}
	key, ok := menu.NavKey(cb.Ref())
	if !ok || key != "regular:-100:5" {
		t.Fatalf("nav key = %q (%v)", key, ok)
	}

	inline := Callback(&tgbotapi.CallbackQuery{ID: "cb2", InlineMessageID: "XYZ", Data: "r1:0:0"})
	if key, ok := menu.NavKey(inline.Ref()); !ok || key != "inline:XYZ" {
		t.Fatalf("inline nav key = %q (%v)", key, ok)
	}
}
