// Package botapikb converts menu keyboards and callbacks to and from
// github.com/go-telegram-bot-api/telegram-bot-api/v5 types.
package botapikb

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	kit "menubot/internal/transport"
	"menubot/pkg/menu"
)

// Markup converts a wire keyboard into an inline keyboard markup.
func Markup(kb menu.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, Button(b))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(r...))
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Button converts one wire button. This API version has no web app buttons;
// a WebAppURL is sent as a plain URL button.
func Button(b menu.Button) tgbotapi.InlineKeyboardButton {
	switch {
	case b.CallbackData != "":
		return tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData)
	case b.URL != "":
		return tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL)
	case b.WebAppURL != "":
		return tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.WebAppURL)
	case b.LoginURL != "":
		return tgbotapi.NewInlineKeyboardButtonLoginURL(b.Text, tgbotapi.LoginURL{URL: b.LoginURL})
	case b.SwitchInlineQueryCurrentChat != "":
		q := b.SwitchInlineQueryCurrentChat
		return tgbotapi.InlineKeyboardButton{Text: b.Text, SwitchInlineQueryCurrentChat: &q}
	case b.SwitchInlineQuery != "":
		return tgbotapi.NewInlineKeyboardButtonSwitch(b.Text, b.SwitchInlineQuery)
	case b.Pay:
		return tgbotapi.InlineKeyboardButton{Text: b.Text, Pay: true}
	default:
		// Telegram rejects buttons without an action; an empty callback
		// keeps the label visible.
		return tgbotapi.NewInlineKeyboardButtonData(b.Text, " ")
	}
}

// Callback converts an inbound callback query.
func Callback(q *tgbotapi.CallbackQuery) *kit.Callback {
	if q == nil {
		return nil
	}
	out := &kit.Callback{
		ID:              q.ID,
		InlineMessageID: q.InlineMessageID,
		Data:            q.Data,
	}
	if q.From != nil {
		out.FromID = q.From.ID
	}
	if m := q.Message; m != nil {
		out.MessageID = m.MessageID
		if m.Chat != nil {
			out.ChatID = m.Chat.ID
		}
	}
	return out
}
