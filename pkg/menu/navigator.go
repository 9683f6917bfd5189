package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	kit "menubot/internal/transport"
	logx "menubot/pkg/logx"
)

// RenderedMenuData is persisted under "{prefix}:menus:{renderId}" once a
// render has been sent successfully.
type RenderedMenuData struct {
	TemplateID string `json:"templateId"`
	Timestamp  int64  `json:"timestamp"` // unix milli
}

type NavigationRecord struct {
	RenderID   string `json:"renderId"`
	TemplateID string `json:"templateId"`
	Timestamp  int64  `json:"timestamp"` // unix milli
}

// NavigationHistory is persisted under "{prefix}:regular:{chatId}:{messageId}"
// or "{prefix}:inline:{inlineMessageId}".
type NavigationHistory struct {
	Records []NavigationRecord `json:"navigationHistory"`
}

// Last returns the most recent record.
func (h NavigationHistory) Last() (NavigationRecord, bool) {
	if len(h.Records) == 0 {
		return NavigationRecord{}, false
	}
	return h.Records[len(h.Records)-1], true
}

const DefaultKeyPrefix = "menu"

// Navigator persists render metadata and per-message navigation history.
//
// Appends are read-modify-write without cross-key transactions: two
// near-simultaneous sends to the same message may lose one record
// (last write wins).
type Navigator struct {
	store  Storage
	prefix string
	now    func() time.Time
	log    logx.Logger
}

type NavOption func(*Navigator)

func WithPrefix(prefix string) NavOption {
	return func(n *Navigator) {
		if p := strings.TrimSpace(prefix); p != "" {
			n.prefix = p
		}
	}
}

func WithClock(now func() time.Time) NavOption {
	return func(n *Navigator) {
		if now != nil {
			n.now = now
		}
	}
}

func WithNavLogger(log logx.Logger) NavOption {
	return func(n *Navigator) { n.log = log }
}

func NewNavigator(store Storage, opts ...NavOption) *Navigator {
	n := &Navigator{store: store, prefix: DefaultKeyPrefix, now: time.Now}
	for _, o := range opts {
		o(n)
	}
	if n.log.IsZero() {
		n.log = logx.Nop()
	}
	return n
}

func (n *Navigator) menuKey(renderID string) string {
	return n.prefix + ":menus:" + renderID
}

// NavKey derives the history key suffix for a message.
func NavKey(ref kit.MessageRef) (string, bool) {
	if ref.InlineMessageID != "" {
		return "inline:" + ref.InlineMessageID, true
	}
	if ref.ChatID != 0 && ref.MessageID != 0 {
		return "regular:" + strconv.FormatInt(ref.ChatID, 10) + ":" + strconv.Itoa(ref.MessageID), true
	}
	return "", false
}

func (n *Navigator) navKey(ref kit.MessageRef) (string, bool) {
	k, ok := NavKey(ref)
	if !ok {
		return "", false
	}
	return n.prefix + ":" + k, true
}

// Wrap returns a Sender that strips handler metadata from outgoing menus and
// records them after the underlying call succeeds. Payloads without a
// *RenderedMenu pass through untouched.
func (n *Navigator) Wrap(s kit.Sender) kit.Sender {
	return kit.SenderFunc{
		SendFn: func(ctx context.Context, to kit.ChatTarget, msg kit.Outgoing) (kit.MessageRef, error) {
			m, msg := n.unwrap(msg)
			ref, err := s.Send(ctx, to, msg)
			if err != nil || m == nil {
				return ref, err
			}
			return ref, n.Record(ctx, ref, m)
		},
		EditFn: func(ctx context.Context, ref kit.MessageRef, msg kit.Outgoing) (kit.MessageRef, error) {
			m, msg := n.unwrap(msg)
			out, err := s.Edit(ctx, ref, msg)
			if err != nil || m == nil {
				return out, err
			}
			// Edits of inline messages may come back without an id.
			if _, ok := NavKey(out); !ok {
				out = ref
			}
			return out, n.Record(ctx, out, m)
		},
	}
}

func (n *Navigator) unwrap(msg kit.Outgoing) (*RenderedMenu, kit.Outgoing) {
	switch rm := msg.ReplyMarkup.(type) {
	case *RenderedMenu:
		if rm == nil {
			return nil, msg
		}
		msg.ReplyMarkup = rm.Wire
		if msg.Text == "" {
			msg.Text = rm.Text
		}
		if msg.ParseMode == "" {
			msg.ParseMode = rm.ParseMode
		}
		if msg.Kind == "" {
			msg.Kind = rm.Media.Kind
			msg.File = rm.Media.File
		}
		return rm, msg
	default:
		return nil, msg
	}
}

// Record persists m as sent at ref: the menu metadata first, then the
// navigation history of ref. A repeated send of the same render id to the
// same message does not add a second record.
func (n *Navigator) Record(ctx context.Context, ref kit.MessageRef, m *RenderedMenu) error {
	ts := n.now().UnixMilli()
	if err := n.writeJSON(ctx, n.menuKey(m.RenderID), RenderedMenuData{TemplateID: m.TemplateID, Timestamp: ts}); err != nil {
		return err
	}

	key, ok := n.navKey(ref)
	if !ok {
		n.log.Debug("menu sent without message identity; history skipped", logx.String("render_id", m.RenderID))
		return nil
	}
	var h NavigationHistory
	if _, err := n.readJSON(ctx, key, &h); err != nil {
		return err
	}
	if last, ok := h.Last(); ok && last.RenderID == m.RenderID {
		// Same render again: the history stays as it is, but writing it
		// back refreshes the key's write time for retention pruning.
		return n.writeJSON(ctx, key, h)
	}
	h.Records = append(h.Records, NavigationRecord{RenderID: m.RenderID, TemplateID: m.TemplateID, Timestamp: ts})
	if err := n.writeJSON(ctx, key, h); err != nil {
		return err
	}
	n.log.Debug("navigation recorded",
		logx.String("key", key),
		logx.String("template_id", m.TemplateID),
		logx.String("render_id", m.RenderID),
		logx.Int("depth", len(h.Records)),
	)
	return nil
}

// MenuData returns the persisted metadata of a render.
func (n *Navigator) MenuData(ctx context.Context, renderID string) (RenderedMenuData, bool, error) {
	var d RenderedMenuData
	ok, err := n.readJSON(ctx, n.menuKey(renderID), &d)
	return d, ok, err
}

// History returns the navigation history of ref (empty if none).
func (n *Navigator) History(ctx context.Context, ref kit.MessageRef) (NavigationHistory, error) {
	var h NavigationHistory
	key, ok := n.navKey(ref)
	if !ok {
		return h, nil
	}
	_, err := n.readJSON(ctx, key, &h)
	return h, err
}

// Back returns the record shown before the current one at ref without
// changing the history. Once the message shows that menu again, Pop drops
// the current record.
func (n *Navigator) Back(ctx context.Context, ref kit.MessageRef) (NavigationRecord, bool, error) {
	h, err := n.History(ctx, ref)
	if err != nil || len(h.Records) < 2 {
		return NavigationRecord{}, false, err
	}
	return h.Records[len(h.Records)-2], true, nil
}

// Pop drops the current record of ref. The root record is never dropped.
func (n *Navigator) Pop(ctx context.Context, ref kit.MessageRef) error {
	key, ok := n.navKey(ref)
	if !ok {
		return nil
	}
	var h NavigationHistory
	if _, err := n.readJSON(ctx, key, &h); err != nil {
		return err
	}
	if len(h.Records) < 2 {
		return nil
	}
	h.Records = h.Records[:len(h.Records)-1]
	return n.writeJSON(ctx, key, h)
}

func (n *Navigator) readJSON(ctx context.Context, key string, v any) (bool, error) {
	b, ok, err := n.store.Read(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", ErrStorage, key, err)
	}
	if !ok || len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", ErrStorage, key, err)
	}
	return true, nil
}

func (n *Navigator) writeJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, key, err)
	}
	if err := n.store.Write(ctx, key, b); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, key, err)
	}
	return nil
}
