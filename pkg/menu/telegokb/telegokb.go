// Package telegokb converts menu keyboards and callbacks to and from
// github.com/mymmrac/telego types.
package telegokb

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	kit "menubot/internal/transport"
	"menubot/pkg/menu"
)

// Markup converts a wire keyboard into an inline keyboard markup.
func Markup(kb menu.Keyboard) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		r := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, Button(b))
		}
		rows = append(rows, tu.InlineKeyboardRow(r...))
	}
	return tu.InlineKeyboard(rows...)
}

func Button(b menu.Button) telego.InlineKeyboardButton {
	out := tu.InlineKeyboardButton(b.Text)
	switch {
	case b.CallbackData != "":
		out = out.WithCallbackData(b.CallbackData)
	case b.URL != "":
		out = out.WithURL(b.URL)
	case b.WebAppURL != "":
		out = out.WithWebApp(&telego.WebAppInfo{URL: b.WebAppURL})
	case b.LoginURL != "":
		out = out.WithLoginURL(&telego.LoginURL{URL: b.LoginURL})
	case b.SwitchInlineQueryCurrentChat != "":
		out = out.WithSwitchInlineQueryCurrentChat(b.SwitchInlineQueryCurrentChat)
	case b.SwitchInlineQuery != "":
		out = out.WithSwitchInlineQuery(b.SwitchInlineQuery)
	case b.Pay:
		out = out.WithPay()
	}
	return out
}

// Callback converts an inbound callback query. The message may be
// inaccessible (too old); its chat and id are still reported.
func Callback(q telego.CallbackQuery) *kit.Callback {
	out := &kit.Callback{
		ID:              q.ID,
		FromID:          q.From.ID,
		InlineMessageID: q.InlineMessageID,
		Data:            q.Data,
	}
	if q.Message != nil {
		out.ChatID = q.Message.GetChat().ID
		out.MessageID = q.Message.GetMessageID()
		if m, ok := q.Message.(*telego.Message); ok {
			out.ThreadID = m.MessageThreadID
		}
	}
	return out
}
