// Package telebotkb converts menu keyboards and callbacks to and from
// gopkg.in/telebot.v4 types.
package telebotkb

import (
	tele "gopkg.in/telebot.v4"

	kit "menubot/internal/transport"
	"menubot/pkg/menu"
)

// Markup converts a wire keyboard into an inline reply markup. A nil or
// empty keyboard yields an empty inline keyboard, which clears the buttons
// of an edited message.
func Markup(kb menu.Keyboard) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(kb))
	for _, row := range kb {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, Button(b))
		}
		rows = append(rows, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// Button converts one wire button. Callback data is passed through verbatim;
// Unique stays empty so telebot does not prefix it.
func Button(b menu.Button) tele.InlineButton {
	out := tele.InlineButton{
		Text:            b.Text,
		Data:            b.CallbackData,
		URL:             b.URL,
		InlineQuery:     b.SwitchInlineQuery,
		InlineQueryChat: b.SwitchInlineQueryCurrentChat,
		Pay:             b.Pay,
	}
	if b.WebAppURL != "" {
		out.WebApp = &tele.WebApp{URL: b.WebAppURL}
	}
	if b.LoginURL != "" {
		out.Login = &tele.Login{URL: b.LoginURL}
	}
	return out
}

// Keyboard converts an inline markup back into a wire keyboard.
func Keyboard(rm *tele.ReplyMarkup) menu.Keyboard {
	if rm == nil {
		return nil
	}
	out := make(menu.Keyboard, 0, len(rm.InlineKeyboard))
	for _, row := range rm.InlineKeyboard {
		r := make([]menu.Button, 0, len(row))
		for _, b := range row {
			mb := menu.Button{
				Text:                         b.Text,
				CallbackData:                 b.Data,
				URL:                          b.URL,
				SwitchInlineQuery:            b.InlineQuery,
				SwitchInlineQueryCurrentChat: b.InlineQueryChat,
				Pay:                          b.Pay,
			}
			if b.WebApp != nil {
				mb.WebAppURL = b.WebApp.URL
			}
			if b.Login != nil {
				mb.LoginURL = b.Login.URL
			}
			r = append(r, mb)
		}
		out = append(out, r)
	}
	return out
}

// Callback converts an inbound callback query. Presses on inline-mode
// messages carry no message, only the inline message id.
func Callback(cb *tele.Callback) *kit.Callback {
	if cb == nil {
		return nil
	}
	out := &kit.Callback{
		ID:              cb.ID,
		InlineMessageID: cb.MessageID,
		Data:            cb.Data,
	}
	if cb.Sender != nil {
		out.FromID = cb.Sender.ID
	}
	if m := cb.Message; m != nil {
		out.MessageID = m.ID
		out.ThreadID = m.ThreadID
		if m.Chat != nil {
			out.ChatID = m.Chat.ID
		}
	}
	return out
}
