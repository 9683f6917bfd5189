package menu

import (
	"fmt"
	"strconv"
	"strings"

	kit "menubot/internal/transport"
)

// Address is a parsed callback address.
type Address struct {
	RenderID string
	Row      int
	Col      int
}

func (a Address) String() string {
	return a.RenderID + ":" + strconv.Itoa(a.Row) + ":" + strconv.Itoa(a.Col)
}

// ParseAddress parses "{renderId}:{row}:{col}". Anything else is reported as
// not an address so the caller can pass it along.
func ParseAddress(s string) (Address, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return Address{}, false
	}
	row, ok := parseIndex(parts[1])
	if !ok {
		return Address{}, false
	}
	col, ok := parseIndex(parts[2])
	if !ok {
		return Address{}, false
	}
	return Address{RenderID: parts[0], Row: row, Col: col}, true
}

// parseIndex accepts base-10 ASCII digits only (no sign, no spaces).
func parseIndex(s string) (int, bool) {
	if s == "" || len(s) > 9 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// RenderedMenu is one concrete instantiation of a Template.
type RenderedMenu struct {
	TemplateID string
	RenderID   string
	Wire       Keyboard
	Cells      [][]Cell
	Text       string
	ParseMode  string
	Media      Media
}

func (*RenderedMenu) isMarkup() {}

// Cell returns the handler cell at (row, col).
func (m *RenderedMenu) Cell(row, col int) (Cell, bool) {
	if m == nil || row < 0 || row >= len(m.Cells) {
		return Cell{}, false
	}
	r := m.Cells[row]
	if col < 0 || col >= len(r) {
		return Cell{}, false
	}
	return r[col], true
}

// Outgoing builds a send payload of the template's media kind with the menu
// as reply markup.
func (m *RenderedMenu) Outgoing() kit.Outgoing {
	kind := m.Media.Kind
	if kind == "" {
		kind = kit.KindText
	}
	return kit.Outgoing{
		Kind:        kind,
		Text:        m.Text,
		File:        m.Media.File,
		ParseMode:   m.ParseMode,
		ReplyMarkup: m,
	}
}

// Render compiles t into a wire keyboard and its handler twin. Addresses
// depend on the final grid position, so rows closed by empty row breaks
// never consume a row index.
func Render(templateID, renderID string, t *Template) (*RenderedMenu, error) {
	if t == nil {
		return nil, ErrNilTemplate
	}
	if renderID == "" || strings.Contains(renderID, ":") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRenderID, renderID)
	}

	out := &RenderedMenu{
		TemplateID: templateID,
		RenderID:   renderID,
		Wire:       Keyboard{},
		Cells:      [][]Cell{},
		Text:       t.text,
		ParseMode:  t.parseMode,
		Media:      t.media,
	}

	var (
		wireRow []Button
		cellRow []Cell
	)
	flush := func() {
		if len(wireRow) == 0 {
			return
		}
		out.Wire = append(out.Wire, wireRow)
		out.Cells = append(out.Cells, cellRow)
		wireRow, cellRow = nil, nil
	}

	for i, op := range t.ops {
		switch op.Kind {
		case OpNative:
			if len(op.Button.CallbackData) > MaxCallbackDataLen {
				return nil, fmt.Errorf("%w: op %d %q", ErrCallbackDataTooLong, i, op.Button.Text)
			}
			wireRow = append(wireRow, op.Button)
			cellRow = append(cellRow, Cell{Button: op.Button})
		case OpHandler:
			addr := Address{RenderID: renderID, Row: len(out.Wire), Col: len(wireRow)}.String()
			if len(addr) > MaxCallbackDataLen {
				return nil, fmt.Errorf("%w: %d bytes", ErrCallbackDataTooLong, len(addr))
			}
			b := Button{Text: op.Label, CallbackData: addr}
			wireRow = append(wireRow, b)
			cellRow = append(cellRow, Cell{Button: b, Handler: op.Handler, Payload: op.Payload})
		case OpRowBreak:
			flush()
		default:
			return nil, fmt.Errorf("menu: op %d: unknown kind %d", i, op.Kind)
		}
	}
	flush()
	return out, nil
}
