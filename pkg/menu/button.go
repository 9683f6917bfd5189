package menu

import (
	"context"

	kit "menubot/internal/transport"
)

// Button is a platform-agnostic inline button descriptor. Field names follow
// the Telegram Bot API so a Keyboard marshals to a valid inline_keyboard.
type Button struct {
	Text                         string `json:"text"`
	CallbackData                 string `json:"callback_data,omitempty"`
	URL                          string `json:"url,omitempty"`
	SwitchInlineQuery            string `json:"switch_inline_query,omitempty"`
	SwitchInlineQueryCurrentChat string `json:"switch_inline_query_current_chat,omitempty"`
	WebAppURL                    string `json:"web_app_url,omitempty"`
	LoginURL                     string `json:"login_url,omitempty"`
	Pay                          bool   `json:"pay,omitempty"`
}

// Keyboard is the plain wire keyboard.
type Keyboard [][]Button

// Markup is a reply markup this package understands. The only variants are
// *RenderedMenu and Keyboard.
type Markup interface {
	isMarkup()
}

func (Keyboard) isMarkup() {}

// Handler runs when a handler-bound button is pressed.
type Handler func(ctx context.Context, p *Press) error

// Press describes one resolved button press.
type Press struct {
	Callback   *kit.Callback
	Address    Address
	TemplateID string
	Payload    string

	// Cold is true when the press was resolved from persisted metadata
	// rather than from a render still held in memory.
	Cold bool
}

// Cell is the handler-metadata twin of a wire button. Native buttons have a
// nil Handler.
type Cell struct {
	Button  Button
	Handler Handler
	Payload string
}
