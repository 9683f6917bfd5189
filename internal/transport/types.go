package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
}

// Callback is an inline button press. Presses on inline-mode messages carry
// InlineMessageID and no chat/message ids.
type Callback struct {
	ID              string
	FromID          int64
	ChatID          int64
	ThreadID        int
	MessageID       int
	InlineMessageID string
	Data            string
}

// Ref returns the identity of the message the pressed keyboard is attached to.
func (c *Callback) Ref() MessageRef {
	if c == nil {
		return MessageRef{}
	}
	return MessageRef{ChatID: c.ChatID, ThreadID: c.ThreadID, MessageID: c.MessageID, InlineMessageID: c.InlineMessageID}
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID          int64
	ThreadID        int
	MessageID       int
	InlineMessageID string
}

func (r MessageRef) Target() ChatTarget {
	return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID}
}

// Kind selects the message variant of an Outgoing payload.
type Kind string

const (
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindAudio     Kind = "audio"
	KindDocument  Kind = "document"
	KindAnimation Kind = "animation"
)

// Outgoing is a send/edit payload. Text doubles as the caption for media
// kinds; File is a platform file id or an URL.
type Outgoing struct {
	Kind           Kind
	Text           string
	File           string
	ParseMode      string
	DisablePreview bool

	// ReplyMarkup is transport-neutral: interceptors may rewrite it before
	// the adapter converts it to the platform shape.
	ReplyMarkup any
}

// Sender is the outbound half of an Adapter.
type Sender interface {
	Send(ctx context.Context, to ChatTarget, msg Outgoing) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Outgoing) (MessageRef, error)
}

// SenderFunc pairs plain functions into a Sender.
type SenderFunc struct {
	SendFn func(ctx context.Context, to ChatTarget, msg Outgoing) (MessageRef, error)
	EditFn func(ctx context.Context, ref MessageRef, msg Outgoing) (MessageRef, error)
}

func (f SenderFunc) Send(ctx context.Context, to ChatTarget, msg Outgoing) (MessageRef, error) {
	return f.SendFn(ctx, to, msg)
}

func (f SenderFunc) Edit(ctx context.Context, ref MessageRef, msg Outgoing) (MessageRef, error) {
	return f.EditFn(ctx, ref, msg)
}

type Adapter interface {
	Sender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
