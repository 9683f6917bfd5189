package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "menubot/internal/transport"
	"menubot/pkg/menu"
	"menubot/pkg/menu/telebotkb"
)

var ErrUnsupportedKind = errors.New("telegram: unsupported message kind")

const telegramTextLimit = 4000

// Send delivers msg to the target chat. Long text is split; the reply
// markup is attached to the first chunk and the returned ref points at it.
func (a *Adapter) Send(ctx context.Context, to kit.ChatTarget, msg kit.Outgoing) (kit.MessageRef, error) {
	rm, err := replyMarkup(msg.ReplyMarkup)
	if err != nil {
		return kit.MessageRef{}, err
	}
	chat := &tele.Chat{ID: to.ChatID}
	opts := func(withMarkup bool) *tele.SendOptions {
		o := &tele.SendOptions{
			ParseMode:             tele.ParseMode(msg.ParseMode),
			DisableWebPagePreview: msg.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		if withMarkup {
			o.ReplyMarkup = rm
		}
		return o
	}

	if kindOf(msg) != kit.KindText {
		what, err := media(msg)
		if err != nil {
			return kit.MessageRef{}, err
		}
		if err := ctx.Err(); err != nil {
			return kit.MessageRef{}, err
		}
		m, err := a.bot.Send(chat, what, opts(true))
		if err != nil {
			return kit.MessageRef{}, err
		}
		return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: m.ID}, nil
	}

	var first kit.MessageRef
	for i, chunk := range splitTelegramText(msg.Text, telegramTextLimit, msg.ParseMode) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		m, err := a.bot.Send(chat, chunk, opts(i == 0))
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: m.ID}
		}
	}
	return first, nil
}

// Edit replaces the content of ref. Text edits that overflow the limit send
// the remainder as new messages (regular messages only). Edits that change
// nothing are reported as success.
func (a *Adapter) Edit(ctx context.Context, ref kit.MessageRef, msg kit.Outgoing) (kit.MessageRef, error) {
	rm, err := replyMarkup(msg.ReplyMarkup)
	if err != nil {
		return ref, err
	}
	if err := ctx.Err(); err != nil {
		return ref, err
	}
	target := editable(ref)
	opt := &tele.SendOptions{
		ParseMode:             tele.ParseMode(msg.ParseMode),
		DisableWebPagePreview: msg.DisablePreview,
		ReplyMarkup:           rm,
	}

	if kindOf(msg) != kit.KindText {
		what, err := media(msg)
		if err != nil {
			return ref, err
		}
		_, err = a.bot.Edit(target, what, opt)
		return ref, editErr(err)
	}

	chunks := splitTelegramText(msg.Text, telegramTextLimit, msg.ParseMode)
	if _, err := a.bot.Edit(target, chunks[0], opt); editErr(err) != nil {
		return ref, err
	}
	if len(chunks) == 1 || ref.InlineMessageID != "" {
		return ref, nil
	}

	chat := &tele.Chat{ID: ref.ChatID}
	for _, chunk := range chunks[1:] {
		if err := ctx.Err(); err != nil {
			return ref, err
		}
		o := &tele.SendOptions{
			ParseMode:             tele.ParseMode(msg.ParseMode),
			DisableWebPagePreview: msg.DisablePreview,
			ThreadID:              ref.ThreadID,
		}
		if _, err := a.bot.Send(chat, chunk, o); err != nil {
			return ref, err
		}
	}
	return ref, nil
}

// editErr drops the results Telegram reports for edits that succeeded:
// inline edits return true instead of a message.
func editErr(err error) error {
	if err == nil || errors.Is(err, tele.ErrTrueResult) || errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	return err
}

func editable(ref kit.MessageRef) tele.StoredMessage {
	if ref.InlineMessageID != "" {
		return tele.StoredMessage{MessageID: ref.InlineMessageID}
	}
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func kindOf(msg kit.Outgoing) kit.Kind {
	if msg.Kind == "" {
		return kit.KindText
	}
	return msg.Kind
}

// media builds the telebot payload for a media kind. Text is the caption.
func media(msg kit.Outgoing) (any, error) {
	f := fileOf(msg.File)
	switch msg.Kind {
	case kit.KindPhoto:
		return &tele.Photo{File: f, Caption: msg.Text}, nil
	case kit.KindVideo:
		return &tele.Video{File: f, Caption: msg.Text}, nil
	case kit.KindAudio:
		return &tele.Audio{File: f, Caption: msg.Text}, nil
	case kit.KindDocument:
		return &tele.Document{File: f, Caption: msg.Text}, nil
	case kit.KindAnimation:
		return &tele.Animation{File: f, Caption: msg.Text}, nil
	case kit.KindText, "":
		return nil, fmt.Errorf("%w: text is not media", ErrUnsupportedKind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, msg.Kind)
	}
}

// fileOf treats http(s) references as URLs and anything else as a file id.
func fileOf(ref string) tele.File {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	return tele.File{FileID: ref}
}

// replyMarkup converts the transport-neutral markup. Menus that bypassed
// the navigator are sent with their wire keyboard.
func replyMarkup(v any) (*tele.ReplyMarkup, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case menu.Keyboard:
		return telebotkb.Markup(m), nil
	case *menu.RenderedMenu:
		if m == nil {
			return nil, nil
		}
		return telebotkb.Markup(m.Wire), nil
	case *tele.ReplyMarkup:
		return m, nil
	default:
		return nil, fmt.Errorf("telegram: unsupported reply markup %T", v)
	}
}

// splitTelegramText splits long messages into chunks Telegram accepts. It
// prefers newline boundaries and, for HTML, avoids cutting inside a tag.
// It always returns at least one chunk.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// avoid tiny chunks
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
