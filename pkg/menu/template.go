package menu

import (
	"strings"

	kit "menubot/internal/transport"
)

type OpKind uint8

const (
	OpNative OpKind = iota + 1
	OpHandler
	OpRowBreak
)

func (k OpKind) String() string {
	switch k {
	case OpNative:
		return "native"
	case OpHandler:
		return "handler"
	case OpRowBreak:
		return "row"
	default:
		return "unknown"
	}
}

// Operation is one recorded builder step.
//
//	OpNative:   Button is sent as-is.
//	OpHandler:  Label, Handler and Payload; the address is assigned at render time.
//	OpRowBreak: closes the current row.
type Operation struct {
	Kind    OpKind
	Button  Button
	Label   string
	Handler Handler
	Payload string
}

// Media selects how a rendered menu is sent: as a text message or as a media
// message whose caption is the template text.
type Media struct {
	Kind kit.Kind
	File string
}

// Template records keyboard structure and accompanying text. Builder methods
// append one operation each and return the same *Template for chaining.
// Media conversions return an independent copy.
type Template struct {
	ops       []Operation
	text      string
	parseMode string
	media     Media
}

func NewTemplate() *Template {
	return &Template{media: Media{Kind: kit.KindText}}
}

// Text sets the message text (or caption for media templates).
func (t *Template) Text(s string) *Template {
	t.text = s
	return t
}

// ParseMode sets the platform parse mode for the text ("HTML", "MarkdownV2", ...).
func (t *Template) ParseMode(mode string) *Template {
	t.parseMode = strings.TrimSpace(mode)
	return t
}

// CB appends a handler-bound button. The optional payload is handed to the
// handler on press and never leaves the process.
func (t *Template) CB(label string, h Handler, payload ...string) *Template {
	op := Operation{Kind: OpHandler, Label: label, Handler: h}
	if len(payload) > 0 {
		op.Payload = payload[0]
	}
	t.ops = append(t.ops, op)
	return t
}

// Button appends a native button descriptor verbatim.
func (t *Template) Button(b Button) *Template {
	t.ops = append(t.ops, Operation{Kind: OpNative, Button: b})
	return t
}

func (t *Template) URL(label, url string) *Template {
	return t.Button(Button{Text: label, URL: url})
}

// Data appends a native button with raw callback data, for presses owned by
// other handlers in the chain.
func (t *Template) Data(label, data string) *Template {
	return t.Button(Button{Text: label, CallbackData: data})
}

func (t *Template) SwitchInline(label, query string) *Template {
	return t.Button(Button{Text: label, SwitchInlineQuery: query})
}

func (t *Template) SwitchInlineCurrent(label, query string) *Template {
	return t.Button(Button{Text: label, SwitchInlineQueryCurrentChat: query})
}

func (t *Template) WebApp(label, url string) *Template {
	return t.Button(Button{Text: label, WebAppURL: url})
}

// Row closes the current row. Consecutive calls never produce empty rows.
func (t *Template) Row() *Template {
	t.ops = append(t.ops, Operation{Kind: OpRowBreak})
	return t
}

// Ops returns a copy of the recorded operations.
func (t *Template) Ops() []Operation {
	return append([]Operation(nil), t.ops...)
}

func (t *Template) TextValue() string { return t.text }

func (t *Template) Media() Media { return t.media }

// Clone deep-copies the template. Handlers are shared (they are values).
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	return &Template{
		ops:       t.Ops(),
		text:      t.text,
		parseMode: t.parseMode,
		media:     t.media,
	}
}

func (t *Template) withMedia(kind kit.Kind, file string) *Template {
	cp := t.Clone()
	cp.media = Media{Kind: kind, File: file}
	return cp
}

func (t *Template) AsText() *Template               { return t.withMedia(kit.KindText, "") }
func (t *Template) Photo(file string) *Template     { return t.withMedia(kit.KindPhoto, file) }
func (t *Template) Video(file string) *Template     { return t.withMedia(kit.KindVideo, file) }
func (t *Template) Audio(file string) *Template     { return t.withMedia(kit.KindAudio, file) }
func (t *Template) Document(file string) *Template  { return t.withMedia(kit.KindDocument, file) }
func (t *Template) Animation(file string) *Template { return t.withMedia(kit.KindAnimation, file) }
